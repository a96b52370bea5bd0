package main

import (
	"context"
	"log"

	"github.com/alkime/practice/internal/app"
	"github.com/alkime/practice/internal/config"
	"github.com/alkime/practice/internal/logger"
	"github.com/alkime/practice/internal/server"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Setup structured logging
	slogger, _, err := logger.SetupLogger(cfg, logger.ModeServer)
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}

	// Log startup information
	slogger.Info("Starting practice media server",
		"env", cfg.Env,
		"port", cfg.Port,
		"storage", cfg.Storage.Backend,
	)

	a, err := app.Open(context.Background(), cfg)
	if err != nil {
		slogger.Error("Failed to open stores", "error", err)
		log.Fatalf("Fatal: %v", err)
	}
	defer a.Close()

	deps := server.Deps{
		Catalog:   a.Store,
		Objects:   a.Objects,
		MediaRoot: "",
	}

	// Local objects are published by this server; minio serves its own.
	if cfg.Storage.Backend == "local" {
		deps.MediaRoot, err = app.MediaRoot(cfg.Storage)
		if err != nil {
			log.Fatalf("Fatal: %v", err)
		}
	}

	srv := server.New(cfg, slogger, deps)

	if err := server.Run(srv); err != nil {
		slogger.Error("Failed to start server", "error", err)
		log.Fatalf("Fatal: %v", err) //nolint:gocritic // exit after deferred close is acceptable here
	}
}
