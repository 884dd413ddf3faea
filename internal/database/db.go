// internal/database/db.go
package database

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB is the process-wide connection pool. Connect it once at startup.
var DB *pgxpool.Pool

// ErrNotFound is returned when a referenced entity is absent or tombstoned.
var ErrNotFound = errors.New("entity not found")

// ErrVersionConflict is returned when a conditional update loses the race
// against another writer (stale version column).
var ErrVersionConflict = errors.New("version conflict")

// ConnectDB builds the pool from POSTGRES_USER/POSTGRES_PASSWORD/PG_HOST/
// PG_PORT/PG_DATABASE and pings it. Fatal on failure; the service cannot run
// without its store of record.
func ConnectDB() {
	connStr := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s",
		os.Getenv("POSTGRES_USER"),
		os.Getenv("POSTGRES_PASSWORD"),
		os.Getenv("PG_HOST"),
		os.Getenv("PG_PORT"),
		os.Getenv("PG_DATABASE"),
	)

	config, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		log.Fatalf("unable to parse pgx config: %v", err)
	}

	DB, err = pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		log.Fatalf("unable to create pgx pool: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := DB.Ping(ctx); err != nil {
		log.Fatalf("db ping error: %v", err)
	}

	log.Printf("Connected to database at %s:%s/%s", os.Getenv("PG_HOST"), os.Getenv("PG_PORT"), os.Getenv("PG_DATABASE"))
}

// notFound converts pgx.ErrNoRows into the package sentinel so callers can
// map it to a 404 without importing pgx.
func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// isUniqueViolation reports whether err is a Postgres unique-constraint error.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// IsUniqueViolation is the exported form for handler-level conflict mapping.
func IsUniqueViolation(err error) bool {
	return isUniqueViolation(err)
}
