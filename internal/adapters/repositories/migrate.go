package repositories

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"route-validation-service/internal/platform/db"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/rs/zerolog"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// MigrateUp applies every pending migration. It is a no-op when the schema
// is already current.
func MigrateUp(conn *sql.DB, driver string, log zerolog.Logger) error {
	m, err := newMigrate(conn, driver, log)
	if err != nil {
		return err
	}
	// m is not closed: that would close conn as well.

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

// MigrateDown rolls back the most recent migration.
func MigrateDown(conn *sql.DB, driver string, log zerolog.Logger) error {
	m, err := newMigrate(conn, driver, log)
	if err != nil {
		return err
	}

	if err := m.Steps(-1); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate down: %w", err)
	}
	return nil
}

// MigrateVersion returns 0, false, nil before the first migration.
func MigrateVersion(conn *sql.DB, driver string, log zerolog.Logger) (uint, bool, error) {
	m, err := newMigrate(conn, driver, log)
	if err != nil {
		return 0, false, err
	}

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

func newMigrate(conn *sql.DB, driver string, log zerolog.Logger) (*migrate.Migrate, error) {
	if conn == nil {
		return nil, errors.New("migrate: DB is nil")
	}

	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("migrate: open embedded migrations: %w", err)
	}

	var (
		target database.Driver
		name   string
	)
	switch driver {
	case db.DriverSQLite:
		target, err = sqlite.WithInstance(conn, &sqlite.Config{})
		name = "sqlite"
	case db.DriverPostgres:
		target, err = migratepgx.WithInstance(conn, &migratepgx.Config{})
		name = "pgx5"
	default:
		return nil, fmt.Errorf("migrate: unsupported driver %q", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("migrate: create %s driver: %w", driver, err)
	}

	m, err := migrate.NewWithInstance("iofs", src, name, target)
	if err != nil {
		return nil, fmt.Errorf("migrate: create instance: %w", err)
	}
	m.Log = migrateLogger{log: log.With().Str("component", "migrate").Logger()}
	return m, nil
}

// migrateLogger adapts zerolog to migrate.Logger.
type migrateLogger struct{ log zerolog.Logger }

func (l migrateLogger) Printf(format string, v ...any) {
	l.log.Info().Msgf(format, v...)
}

func (l migrateLogger) Verbose() bool {
	return l.log.GetLevel() <= zerolog.DebugLevel
}
