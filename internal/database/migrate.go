package database

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	DefaultDatabaseName = "facegate"
	// MigrationsTable holds the schema version, apart from any other
	// application sharing the database.
	MigrationsTable = "facegate_schema_migrations"
)

// SchemaStatus compares the applied schema with the embedded migrations.
type SchemaStatus struct {
	Version uint
	Latest  uint
	Dirty   bool
}

// Pending reports whether migrations remain to be applied.
func (s SchemaStatus) Pending() bool {
	return s.Version < s.Latest
}

// Migrator applies the embedded users and face_login_events schema.
type Migrator struct {
	m *migrate.Migrate
}

// NewMigrator binds the embedded migrations to db. A nil logger keeps
// golang-migrate quiet.
func NewMigrator(db *sql.DB, dbName string, logger *slog.Logger) (*Migrator, error) {
	if dbName == "" {
		dbName = DefaultDatabaseName
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{
		DatabaseName:    dbName,
		MigrationsTable: MigrationsTable,
	})
	if err != nil {
		return nil, fmt.Errorf("create postgres driver: %w", err)
	}

	src, err := openMigrations()
	if err != nil {
		return nil, err
	}

	m, err := migrate.NewWithInstance("iofs", src, dbName, driver)
	if err != nil {
		return nil, fmt.Errorf("create migrator: %w", err)
	}
	if logger != nil {
		m.Log = migrateLogger{logger: logger.With("component", "migrate")}
	}

	return &Migrator{m: m}, nil
}

func openMigrations() (source.Driver, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("open embedded migrations: %w", err)
	}
	return src, nil
}

// LatestVersion returns the highest embedded migration version.
func LatestVersion() (uint, error) {
	src, err := openMigrations()
	if err != nil {
		return 0, err
	}
	defer func() { _ = src.Close() }()

	version, err := src.First()
	if err != nil {
		return 0, fmt.Errorf("first migration: %w", err)
	}

	for {
		next, err := src.Next(version)
		if errors.Is(err, fs.ErrNotExist) {
			return version, nil
		}
		if err != nil {
			return 0, fmt.Errorf("migration after %d: %w", version, err)
		}
		version = next
	}
}

// Up applies every pending migration. An up-to-date schema is not an error.
func (m *Migrator) Up() error {
	err := m.m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// Down rolls back the most recent migration. Rolling back 000001 drops the
// users table and every enrolled face with it.
func (m *Migrator) Down() error {
	if err := m.m.Steps(-1); err != nil {
		return fmt.Errorf("rollback migration: %w", err)
	}
	return nil
}

// Version returns the applied version; 0 when nothing was applied yet.
func (m *Migrator) Version() (uint, bool, error) {
	version, dirty, err := m.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get version: %w", err)
	}
	return version, dirty, nil
}

// Status returns the applied version next to the latest embedded one.
func (m *Migrator) Status() (SchemaStatus, error) {
	version, dirty, err := m.Version()
	if err != nil {
		return SchemaStatus{}, err
	}

	latest, err := LatestVersion()
	if err != nil {
		return SchemaStatus{}, err
	}

	return SchemaStatus{Version: version, Latest: latest, Dirty: dirty}, nil
}

// Force records version as applied without running anything. Used to
// clear a dirty flag after fixing a failed migration by hand.
func (m *Migrator) Force(version int) error {
	if err := m.m.Force(version); err != nil {
		return fmt.Errorf("force version: %w", err)
	}
	return nil
}

func (m *Migrator) Close() error {
	srcErr, dbErr := m.m.Close()
	return errors.Join(srcErr, dbErr)
}

// migrateLogger routes golang-migrate output through slog.
type migrateLogger struct {
	logger *slog.Logger
}

func (l migrateLogger) Printf(format string, v ...any) {
	l.logger.Info(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l migrateLogger) Verbose() bool {
	return false
}
