package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/saturnino-fabrica-de-software/facegate/internal/config"
	"github.com/saturnino-fabrica-de-software/facegate/internal/database"
)

// migrateConfig is the part of the environment migrations need. The API's
// required settings (JWT_SECRET and friends) are not.
type migrateConfig struct {
	DatabaseURL  string `envconfig:"DATABASE_URL" required:"true"`
	DatabaseName string `envconfig:"DATABASE_NAME" default:"facegate"`
	Environment  string `envconfig:"ENV" default:"development"`
	LogLevel     string `envconfig:"LOG_LEVEL"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Flags
	action := flag.String("action", "up", "Migration action: up, down, status, force")
	forceVersion := flag.Int("version", 0, "Version to record (for force action)")
	flag.Parse()

	// Load configuration
	_ = godotenv.Load()

	var cfg migrateConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := config.NewLogger(cfg.Environment, cfg.LogLevel)

	// golang-migrate requires database/sql
	db, err := database.OpenSQL(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	migrator, err := database.NewMigrator(db, cfg.DatabaseName, logger)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	defer func() { _ = migrator.Close() }()

	// Execute action
	switch *action {
	case "up":
		if err := migrator.Up(); err != nil {
			return fmt.Errorf("migration up failed: %w", err)
		}

	case "down":
		if err := migrator.Down(); err != nil {
			return fmt.Errorf("migration down failed: %w", err)
		}

	case "status", "version":
		// reported below

	case "force":
		if *forceVersion <= 0 {
			return fmt.Errorf("-version is required for force action")
		}
		logger.Warn("forcing schema version", slog.Int("version", *forceVersion))
		if err := migrator.Force(*forceVersion); err != nil {
			return fmt.Errorf("force migration failed: %w", err)
		}

	default:
		return fmt.Errorf("invalid action: %s (use: up, down, status, force)", *action)
	}

	status, err := migrator.Status()
	if err != nil {
		return fmt.Errorf("failed to get schema status: %w", err)
	}

	logger.Info("schema status",
		slog.String("action", *action),
		slog.Uint64("version", uint64(status.Version)),
		slog.Uint64("latest", uint64(status.Latest)),
		slog.Bool("dirty", status.Dirty),
		slog.Bool("pending", status.Pending()),
	)
	if status.Dirty {
		logger.Error("schema is dirty: fix the failed migration, then run -action force -version N")
	}

	return nil
}
