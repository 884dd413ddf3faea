// cmd/mirror/main.go
//
// Standalone mirror worker. Consumes change records from the Redis queue and
// rebuilds per-game state documents from Postgres. Run alongside the server,
// or scale it independently.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/chronocore/chronocore-service/internal/database"
	"github.com/chronocore/chronocore-service/internal/mirror"
)

func main() {
	database.ConnectDB()
	defer database.DB.Close()

	logger := logrus.New()
	if os.Getenv("LOG_LEVEL") == "debug" {
		logger.SetLevel(logrus.DebugLevel)
	}

	rdb, err := mirror.Connect()
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}

	worker := mirror.NewWorker(rdb, database.DocumentLoader{}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		logger.Infof("received %v, shutting down", sig)
		worker.Stop()
		cancel()
	}()

	logger.Info("mirror worker started")
	worker.Run(ctx)
}
