package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed files/*.sql
var migrationFiles embed.FS

// ErrSchemaAhead means the database was written by a newer workspaces
// binary. Running migrations would be destructive, so nothing proceeds.
var ErrSchemaAhead = errors.New("database schema is ahead of this binary (binary needs update)")

// Upgrade brings the database at dbPath to the newest schema version.
//
// At the newest version this is a no-op that performs no writes. A version
// ahead of the binary is fatal (ErrSchemaAhead). Otherwise a timestamped
// backup copy is written next to the database first — no migration runs
// without one — and the pending migrations are applied in ascending order,
// each recording its version before committing. A failed migration leaves
// the earlier ones applied; recovery is restoring the backup.
func Upgrade(db *sql.DB, dbPath string, now time.Time) error {
	m, sourceDriver, err := newMigrate(db)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	// Note: we don't close m because it would close the db connection.
	// The caller owns the db and is responsible for closing it.
	defer sourceDriver.Close()

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		version = 0
	} else if err != nil {
		return fmt.Errorf("failed to get database version: %w", err)
	}
	if dirty {
		return fmt.Errorf("database is in dirty state at version %d (migration failed previously, restore from backup)", version)
	}

	latest, err := latestVersion(sourceDriver)
	if err != nil {
		return fmt.Errorf("failed to determine latest version: %w", err)
	}

	if version > latest {
		return fmt.Errorf("%w: database at %d, binary knows %d", ErrSchemaAhead, version, latest)
	}
	if version == latest {
		return nil
	}

	if dbPath != "" && dbPath != ":memory:" {
		backupPath := BackupPath(dbPath, now)
		if _, err := db.Exec("VACUUM INTO ?", backupPath); err != nil {
			return fmt.Errorf("backing up database to %s before migration: %w", backupPath, err)
		}
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration failed: %w", err)
	}

	return nil
}

// BackupPath returns the timestamped sibling path used for pre-migration
// backups, e.g. workspaces-20240115T103000.db.bak.
func BackupPath(dbPath string, now time.Time) string {
	dir := filepath.Dir(dbPath)
	base := strings.TrimSuffix(filepath.Base(dbPath), filepath.Ext(dbPath))
	return filepath.Join(dir, fmt.Sprintf("%s-%s.db.bak", base, now.UTC().Format("20060102T150405")))
}

// newMigrate creates a migrate instance for the given database.
func newMigrate(db *sql.DB) (*migrate.Migrate, source.Driver, error) {
	sourceDriver, err := iofs.New(migrationFiles, "files")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create source driver: %w", err)
	}

	dbDriver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		sourceDriver.Close()
		return nil, nil, fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", dbDriver)
	if err != nil {
		sourceDriver.Close()
		return nil, nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}

	return m, sourceDriver, nil
}

// latestVersion returns the highest version number available in the source.
func latestVersion(src source.Driver) (uint, error) {
	version, err := src.First()
	if err != nil {
		return 0, err
	}

	latest := version
	for {
		next, err := src.Next(latest)
		if err != nil {
			// Any error from Next() means we've reached the end.
			break
		}
		latest = next
	}

	return latest, nil
}
