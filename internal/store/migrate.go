package store

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/matheus3301/fitmsg/internal/store/migrations"
)

// SchemaVersion is the migration version the devserver's queries are written
// against.
const SchemaVersion uint = 1

// MigrateResult reports the schema state after Migrate.
type MigrateResult struct {
	Version uint
	Changed bool
}

// Migrate brings the database up to SchemaVersion. A dirty database (a
// previous migration failed halfway) or one migrated past SchemaVersion by a
// newer devserver is an error.
func (db *DB) Migrate() (*MigrateResult, error) {
	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return nil, fmt.Errorf("migration source: %w", err)
	}
	driver, err := sqlite3.WithInstance(db.DB, &sqlite3.Config{})
	if err != nil {
		return nil, fmt.Errorf("migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return nil, fmt.Errorf("migration instance: %w", err)
	}

	before, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
	case err != nil:
		return nil, fmt.Errorf("schema version: %w", err)
	case dirty:
		return nil, fmt.Errorf("schema version %d is dirty, restore or recreate the database", before)
	case before > SchemaVersion:
		return nil, fmt.Errorf("database schema v%d is newer than this devserver (v%d)", before, SchemaVersion)
	}

	if err := m.Migrate(SchemaVersion); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return nil, fmt.Errorf("migrate to v%d: %w", SchemaVersion, err)
	}
	return &MigrateResult{Version: SchemaVersion, Changed: before != SchemaVersion}, nil
}
