// cmd/server/main.go
package main

import (
	"log"
	"net/http"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/chronocore/chronocore-service/internal/ai"
	"github.com/chronocore/chronocore-service/internal/auth"
	"github.com/chronocore/chronocore-service/internal/database"
	"github.com/chronocore/chronocore-service/internal/game"
	"github.com/chronocore/chronocore-service/internal/handlers"
	"github.com/chronocore/chronocore-service/internal/mirror"
)

func main() {
	auth.Init()
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
	changes := mirror.NewWriter(rdb)

	registry := game.NewRegistry(logger)
	aiClient := ai.NewClient(logger)

	dispatcher := game.NewDispatcher(database.Std{}, aiClient, changes, logger)
	dispatcher.BroadcastFn = registry.Broadcast

	srv := &handlers.Server{
		Logger:     logger,
		Registry:   registry,
		Dispatcher: dispatcher,
		AI:         aiClient,
		Mirror:     mirror.NewReader(rdb),
		Changes:    changes,
	}

	addr := ":8080"
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	logger.Infof("Running on %s", addr)
	if err := http.ListenAndServe(addr, srv.Routes()); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
