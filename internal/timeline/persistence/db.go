// Package persistence is the engine's sqlite-backed Persister (§6 schema,
// §4.3 save). Grounded on internal/db/db.go's NewDB/applyPragmas and
// internal/db/migrate.go's golang-migrate wiring: a fresh database is
// initialised from an embedded schema.sql, an existing one is carried
// forward with golang-migrate, and every connection gets the same
// concurrency PRAGMAs regardless of how it was opened.
package persistence

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DB wraps a sqlite connection pool opened with the engine's schema.
type DB struct {
	*sql.DB
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("persistence: %q: %w", p, err)
		}
	}
	return nil
}

// Open opens (or creates) the sqlite database at path, applies the
// concurrency PRAGMAs, and brings the schema up to date: a brand new file
// is initialised from schemaSQL and baselined at the latest migration
// version; an existing one is migrated forward.
func Open(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("persistence: open %s: %w", path, err)
	}
	if err := applyPragmas(sqlDB); err != nil {
		return nil, err
	}
	db := &DB{sqlDB}

	var tableCount int
	if err := sqlDB.QueryRow(
		`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%'`,
	).Scan(&tableCount); err != nil {
		return nil, fmt.Errorf("persistence: count tables: %w", err)
	}

	if tableCount == 0 {
		if _, err := sqlDB.Exec(schemaSQL); err != nil {
			return nil, fmt.Errorf("persistence: init schema: %w", err)
		}
		if err := db.baselineAtLatest(); err != nil {
			return nil, err
		}
		return db, nil
	}

	if err := db.MigrateUp(); err != nil {
		return nil, err
	}
	return db, nil
}

func (db *DB) migrateSub() (fs.FS, error) {
	return fs.Sub(migrationsFS, "migrations")
}

func (db *DB) newMigrate() (*migrate.Migrate, error) {
	sub, err := db.migrateSub()
	if err != nil {
		return nil, fmt.Errorf("persistence: migrations sub-fs: %w", err)
	}
	source, err := iofs.New(sub, ".")
	if err != nil {
		return nil, fmt.Errorf("persistence: iofs source: %w", err)
	}
	driver, err := migratesqlite.WithInstance(db.DB, &migratesqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("persistence: sqlite migrate driver: %w", err)
	}
	return migrate.NewWithInstance("iofs", source, "sqlite", driver)
}

// MigrateUp runs every pending migration. A no-op if already current.
func (db *DB) MigrateUp() error {
	m, err := db.newMigrate()
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("persistence: migrate up: %w", err)
	}
	return nil
}

// baselineAtLatest marks a freshly schema-initialised database as already
// at the latest migration version, without re-running the migrations that
// produced the same schema.
func (db *DB) baselineAtLatest() error {
	m, err := db.newMigrate()
	if err != nil {
		return err
	}
	sub, err := db.migrateSub()
	if err != nil {
		return err
	}
	entries, err := fs.Glob(sub, "*.up.sql")
	if err != nil {
		return fmt.Errorf("persistence: glob migrations: %w", err)
	}
	if len(entries) == 0 {
		return nil
	}
	var latest uint
	for _, e := range entries {
		var v uint
		if _, err := fmt.Sscanf(e, "%d_", &v); err == nil && v > latest {
			latest = v
		}
	}
	if err := m.Force(int(latest)); err != nil {
		return fmt.Errorf("persistence: baseline at v%d: %w", latest, err)
	}
	return nil
}
