package main

import (
	"context"
	"os"

	"github.com/safar/storefront/internal/config"
	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/logger"
)

func main() {
	log := logger.New(logger.Options{Service: "migrations"})

	if len(os.Args) < 2 {
		log.Error("usage: go run scripts/run_migrations.go [up|down]")
		os.Exit(2)
	}
	direction := database.Direction(os.Args[1])

	cfg, err := config.Load()
	if err != nil {
		log.Error("load config", "error", err)
		os.Exit(1)
	}

	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		log.Error("connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	ran, err := database.Migrate(context.Background(), db, "migrations", direction)
	if err != nil {
		log.Error("run migrations", "direction", direction, "error", err)
		os.Exit(1)
	}

	for _, name := range ran {
		log.Info("ran migration", "file", name)
	}
	log.Info("migrations complete", "count", len(ran), "direction", direction)
}
