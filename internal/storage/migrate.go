package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"closeout/internal/log"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// migrationsTable keeps the ledger schema version apart from any other tool
// sharing the database file.
const migrationsTable = "closeout_schema_migrations"

// ErrDirtySchema means a previous migration stopped half way.
var ErrDirtySchema = errors.New("ledger schema is dirty")

// RunMigrations brings the ledger schema at dbPath up to date and returns
// the resulting version. It uses its own connection because closing the
// migrator closes the database it was given.
func RunMigrations(dbPath string, logger *log.Logger) (uint, error) {
	logger = log.OrDefault(logger, log.ComponentStorage)

	migrateDB, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return 0, fmt.Errorf("open migration database: %w", err)
	}
	defer migrateDB.Close()

	driver, err := sqlite.WithInstance(migrateDB, &sqlite.Config{MigrationsTable: migrationsTable})
	if err != nil {
		return 0, fmt.Errorf("create sqlite driver: %w", err)
	}
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return 0, fmt.Errorf("create iofs source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return 0, fmt.Errorf("create migrate instance: %w", err)
	}
	defer m.Close()

	if _, dirty, err := m.Version(); err == nil && dirty {
		return 0, ErrDirtySchema
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("run migrations: %w", err)
	}

	version, _, err := m.Version()
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	logger.Debug("Ledger schema ready", "version", version, log.FieldPath, dbPath)
	return version, nil
}
