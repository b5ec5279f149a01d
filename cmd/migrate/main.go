package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/cassiomorais/pspadapter/internal/application/ledger"
	"github.com/cassiomorais/pspadapter/internal/infrastructure/config"
	"github.com/cassiomorais/pspadapter/internal/infrastructure/observability"
	"github.com/cassiomorais/pspadapter/internal/infrastructure/postgres"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

func main() {
	var (
		direction string
		dbURL     string
		path      string
		skipTypes bool
	)

	flag.StringVar(&direction, "direction", "up", "Migration direction: up or down")
	flag.StringVar(&dbURL, "db", "", "Database URL (defaults to the configured database)")
	flag.StringVar(&path, "path", "internal/infrastructure/postgres/migrations", "Path to migration files")
	flag.BoolVar(&skipTypes, "skip-types", false, "Do not provision interaction types after migrating up")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := observability.InitLogger(cfg.Observability.LogLevel, "pspadapter-migrate", os.Stdout)

	if dbURL == "" {
		dbURL = cfg.Database.DatabaseURL()
	}

	m, err := migrate.New("file://"+path, dbURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create migrate instance")
	}
	defer m.Close()

	switch direction {
	case "up":
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			logger.Fatal().Err(err).Msg("Migration up failed")
		}
		logger.Info().Msg("Migrations applied successfully")
	case "down":
		if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			logger.Fatal().Err(err).Msg("Migration down failed")
		}
		logger.Info().Msg("Migrations rolled back successfully")
		return
	default:
		logger.Fatal().Str("direction", direction).Msg("Unknown direction (use 'up' or 'down')")
	}

	if skipTypes {
		return
	}

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, &cfg.Database, "pspadapter-migrate")
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pool.Close()

	if err := ledger.Provision(ctx, postgres.NewTypeRepository(pool), nil, logger); err != nil {
		logger.Fatal().Err(err).Msg("Failed to provision interaction types")
	}
	logger.Info().Msg("Interaction types provisioned")
}
