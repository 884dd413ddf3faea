// internal/database/realm.go
package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/chronocore/chronocore-service/internal/models"
)

const realmColumns = `id, timeline_id, name, owner_id, development, resources,
	population, coord_x, coord_y, created_at`

func scanRealm(row pgx.Row) (*models.Realm, error) {
	var r models.Realm
	err := row.Scan(
		&r.ID, &r.TimelineID, &r.Name, &r.OwnerID, &r.Development, &r.Resources,
		&r.Population, &r.Coordinates.X, &r.Coordinates.Y, &r.CreatedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}
	return &r, nil
}

func CreateRealm(ctx context.Context, r *models.Realm) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.Development < models.MinDevelopment {
		r.Development = models.MinDevelopment
	}

	q := `
	INSERT INTO realms (id, timeline_id, name, owner_id, development, resources, population, coord_x, coord_y)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	err := pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, e := tx.Exec(ctx, q, r.ID, r.TimelineID, r.Name, r.OwnerID, r.Development,
			r.Resources, r.Population, r.Coordinates.X, r.Coordinates.Y)
		return e
	})
	if err != nil {
		return fmt.Errorf("failed to insert realm: %w", err)
	}
	return nil
}

func GetRealmByID(ctx context.Context, id uuid.UUID) (*models.Realm, error) {
	q := `SELECT ` + realmColumns + ` FROM realms WHERE id=$1 AND deleted_at IS NULL`
	return scanRealm(DB.QueryRow(ctx, q, id))
}

// ListRealmsByTimeline returns the timeline's realms in creation order.
func ListRealmsByTimeline(ctx context.Context, timelineID uuid.UUID) ([]*models.Realm, error) {
	q := `SELECT ` + realmColumns + ` FROM realms WHERE timeline_id=$1 AND deleted_at IS NULL ORDER BY created_at`
	rows, err := DB.Query(ctx, q, timelineID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var realms []*models.Realm
	for rows.Next() {
		r, err := scanRealm(rows)
		if err != nil {
			return nil, err
		}
		realms = append(realms, r)
	}
	return realms, rows.Err()
}

// SetRealmDevelopment applies a signed delta, clamped to [1,10].
func SetRealmDevelopment(ctx context.Context, id uuid.UUID, delta int) (int, error) {
	q := `
	UPDATE realms SET development=LEAST($1, GREATEST($2, development+$3))
	WHERE id=$4 AND deleted_at IS NULL
	RETURNING development
	`
	var dev int
	err := DB.QueryRow(ctx, q, models.MaxDevelopment, models.MinDevelopment, delta, id).Scan(&dev)
	if err != nil {
		return 0, notFound(err)
	}
	return dev, nil
}

// AdjustRealmResources applies a signed delta, clamped at zero.
func AdjustRealmResources(ctx context.Context, id uuid.UUID, delta int) (int, error) {
	q := `
	UPDATE realms SET resources=GREATEST(0, resources+$1)
	WHERE id=$2 AND deleted_at IS NULL
	RETURNING resources
	`
	var resources int
	if err := DB.QueryRow(ctx, q, delta, id).Scan(&resources); err != nil {
		return 0, notFound(err)
	}
	return resources, nil
}

// AdjustRealmPopulation applies a signed delta, clamped at zero.
func AdjustRealmPopulation(ctx context.Context, id uuid.UUID, delta int) (int, error) {
	q := `
	UPDATE realms SET population=GREATEST(0, population+$1)
	WHERE id=$2 AND deleted_at IS NULL
	RETURNING population
	`
	var population int
	if err := DB.QueryRow(ctx, q, delta, id).Scan(&population); err != nil {
		return 0, notFound(err)
	}
	return population, nil
}

// TransferRealmOwner reassigns ownership and keeps both players'
// realms_controlled counters consistent, all in one transaction. The new
// owner must be a player of the same game as the realm's timeline.
func TransferRealmOwner(ctx context.Context, realmID, newOwnerID uuid.UUID) error {
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		var prevOwner *uuid.UUID
		var gameID uuid.UUID
		q := `
		SELECT r.owner_id, t.game_id
		FROM realms r JOIN timelines t ON r.timeline_id = t.id
		WHERE r.id=$1 AND r.deleted_at IS NULL
		FOR UPDATE OF r
		`
		if err := tx.QueryRow(ctx, q, realmID).Scan(&prevOwner, &gameID); err != nil {
			return notFound(err)
		}

		var newOwnerGame uuid.UUID
		q = `SELECT game_id FROM players WHERE id=$1 AND deleted_at IS NULL`
		if err := tx.QueryRow(ctx, q, newOwnerID).Scan(&newOwnerGame); err != nil {
			return notFound(err)
		}
		if newOwnerGame != gameID {
			return fmt.Errorf("player %s is not in game %s: %w", newOwnerID, gameID, ErrNotFound)
		}
		if prevOwner != nil && *prevOwner == newOwnerID {
			return nil
		}

		if _, err := tx.Exec(ctx,
			`UPDATE realms SET owner_id=$1 WHERE id=$2`, newOwnerID, realmID); err != nil {
			return err
		}

		bump := `
		UPDATE players
		SET stats = jsonb_set(stats, '{realms_controlled}',
			(GREATEST(0, COALESCE((stats->>'realms_controlled')::int, 0) + $1))::text::jsonb)
		WHERE id=$2
		`
		if prevOwner != nil {
			if _, err := tx.Exec(ctx, bump, -1, *prevOwner); err != nil {
				return err
			}
		}
		if _, err := tx.Exec(ctx, bump, 1, newOwnerID); err != nil {
			return err
		}
		return nil
	})
}
