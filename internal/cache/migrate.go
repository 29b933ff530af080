package cache

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// migrateSchema applies every pending schema migration to the sqlite file at dsn.
// It opens its own cgo-backed connection for the duration of the migration
// (golang-migrate's sqlite3 driver requires database/sql + mattn/go-sqlite3);
// the store's own gorm.DB, opened separately via the pure-Go glebarez/sqlite
// driver, reads the same file once migrations complete.
func migrateSchema(dsn string) error {
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return fmt.Errorf("cache: open migration connection: %w", err)
	}
	defer sqlDB.Close()

	source, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("cache: load embedded migrations: %w", err)
	}

	driver, err := sqlite3.WithInstance(sqlDB, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("cache: sqlite migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("cache: init migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("cache: apply migrations: %w", err)
	}
	return nil
}
