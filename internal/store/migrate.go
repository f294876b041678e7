package store

import (
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres" // registers the postgres:// driver
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// MigrationSource returns the embedded schema migrations.
func MigrationSource() (source.Driver, error) {
	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("opening embedded migrations: %w", err)
	}
	return src, nil
}

// migrationLogger routes golang-migrate output to slog.
type migrationLogger struct {
	logger *slog.Logger
}

func (l migrationLogger) Printf(format string, v ...any) {
	l.logger.Debug(fmt.Sprintf(format, v...))
}

func (l migrationLogger) Verbose() bool {
	return false
}

// Migrator applies the embedded schema to a PostgreSQL database.
type Migrator struct {
	m      *migrate.Migrate
	logger *slog.Logger
}

// NewMigrator opens its own connection to databaseURL. The URL must use the
// postgres:// or postgresql:// scheme.
func NewMigrator(databaseURL string, logger *slog.Logger) (*Migrator, error) {
	src, err := MigrationSource()
	if err != nil {
		return nil, err
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("creating migrator: %w", err)
	}
	m.Log = migrationLogger{logger: logger}
	return &Migrator{m: m, logger: logger}, nil
}

// Up applies every pending migration. An up-to-date schema is not an error.
func (mg *Migrator) Up() error {
	err := mg.m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		mg.logger.Info("schema up to date")
		return nil
	}
	if err != nil {
		return fmt.Errorf("migrating up: %w", err)
	}
	version, dirty, _ := mg.m.Version()
	mg.logger.Info("migrations applied", "version", version, "dirty", dirty)
	return nil
}

// Down rolls back every migration.
func (mg *Migrator) Down() error {
	err := mg.m.Down()
	if errors.Is(err, migrate.ErrNoChange) {
		mg.logger.Info("no migrations to roll back")
		return nil
	}
	if err != nil {
		return fmt.Errorf("migrating down: %w", err)
	}
	mg.logger.Info("migrations rolled back")
	return nil
}

// Version returns the applied schema version. A fresh database reports 0.
func (mg *Migrator) Version() (uint, bool, error) {
	version, dirty, err := mg.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("reading schema version: %w", err)
	}
	return version, dirty, nil
}

// Force marks version as applied without running it, clearing a dirty state.
func (mg *Migrator) Force(version int) error {
	mg.logger.Warn("forcing schema version", "version", version)
	if err := mg.m.Force(version); err != nil {
		return fmt.Errorf("forcing version %d: %w", version, err)
	}
	return nil
}

// Close releases the migrator's source and database connection.
func (mg *Migrator) Close() error {
	srcErr, dbErr := mg.m.Close()
	return errors.Join(srcErr, dbErr)
}
