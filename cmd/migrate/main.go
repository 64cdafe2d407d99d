package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/syncbridge/backend/internal/infrastructure/config"
	"github.com/syncbridge/backend/internal/infrastructure/logger"
	"github.com/syncbridge/backend/internal/infrastructure/persistence"
)

// migrate applies the unified entity, pending conflict and dead letter
// schemas to the configured database. The server runs the same migration on
// startup; this command exists for deployments that migrate before rollout.
func main() {
	var logLevel string
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(config.LogConfig{Level: logLevel, Format: "console", Output: "stdout"})
	defer func() {
		_ = log.Sync()
	}()

	db, err := persistence.NewDatabase(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()

	if err := db.Migrate(); err != nil {
		log.Fatal("Migration failed", zap.Error(err))
	}
	log.Info("Migration completed",
		zap.String("host", cfg.Database.Host),
		zap.String("database", cfg.Database.DBName),
	)
}
