// ABOUTME: Applies the embedded schema migrations for the store's dialect.
// ABOUTME: Shared by the migrate subcommand and the test helpers.
package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/scarson/board-ops/migrations"
)

// Migrate applies all pending migrations for dialect d to db and returns the
// resulting schema version. For Postgres, db should use the simple query
// protocol so multi-statement files run natively.
func Migrate(db *sql.DB, d Dialect) (uint, error) {
	var (
		dir        string
		driverName string
		driver     database.Driver
		err        error
	)
	switch d {
	case DialectPostgres:
		dir, driverName = migrations.PostgresDir, "postgres"
		driver, err = migratepg.WithInstance(db, &migratepg.Config{MultiStatementEnabled: true})
	case DialectSQLite:
		dir, driverName = migrations.SQLiteDir, "sqlite3"
		driver, err = migratesqlite.WithInstance(db, &migratesqlite.Config{})
	default:
		return 0, fmt.Errorf("migrate: unsupported dialect %q", d)
	}
	if err != nil {
		return 0, fmt.Errorf("migration driver: %w", err)
	}

	src, err := iofs.New(migrations.FS, dir)
	if err != nil {
		return 0, fmt.Errorf("migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, driverName, driver)
	if err != nil {
		return 0, fmt.Errorf("migrate init: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("migrate up: %w", err)
	}

	version, _, err := m.Version()
	if err != nil {
		return 0, fmt.Errorf("migrate version: %w", err)
	}
	return version, nil
}
