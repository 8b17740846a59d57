package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/pressly/goose/v3/lock"

	"lms/pkg/logger"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrator applies the embedded schema migrations with goose. Runs on
// different nodes are serialized by a session advisory lock.
type Migrator struct {
	db       *sql.DB
	provider *goose.Provider
}

// NewMigrator opens a database/sql handle on top of the pool. Closing the
// migrator leaves the pool open.
func NewMigrator(pool *Pool) (*Migrator, error) {
	return newMigrator(stdlib.OpenDBFromPool(pool.Pool))
}

func newMigrator(db *sql.DB) (*Migrator, error) {
	fsys, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations directory: %w", err)
	}
	locker, err := lock.NewPostgresSessionLocker()
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration locker: %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectPostgres, db, fsys,
		goose.WithSessionLocker(locker),
		goose.WithDisableGlobalRegistry(true),
	)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration provider: %w", err)
	}
	return &Migrator{db: db, provider: provider}, nil
}

// Sources lists the embedded migrations in version order.
func (m *Migrator) Sources() []*goose.Source {
	return m.provider.ListSources()
}

// Up applies every pending migration in version order.
func (m *Migrator) Up(ctx context.Context) error {
	logger.Info(ctx, "running database migrations", "available", len(m.Sources()))
	results, err := m.provider.Up(ctx)
	logResults(ctx, results)
	if err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	logger.Info(ctx, "all migrations completed", "applied", len(results))
	return nil
}

// DownTo rolls back every applied migration newer than version.
func (m *Migrator) DownTo(ctx context.Context, version int64) error {
	results, err := m.provider.DownTo(ctx, version)
	logResults(ctx, results)
	if err != nil {
		return fmt.Errorf("roll back migrations: %w", err)
	}
	return nil
}

// Status reports every known migration and whether it is applied.
func (m *Migrator) Status(ctx context.Context) ([]*goose.MigrationStatus, error) {
	return m.provider.Status(ctx)
}

// Version returns the highest applied version.
func (m *Migrator) Version(ctx context.Context) (int64, error) {
	return m.provider.GetDBVersion(ctx)
}

// Close releases the database/sql handle.
func (m *Migrator) Close() error {
	return m.db.Close()
}

func logResults(ctx context.Context, results []*goose.MigrationResult) {
	for _, r := range results {
		if r.Error != nil {
			logger.Error(ctx, "migration failed", "version", r.Source.Version, "path", r.Source.Path, "error", r.Error)
			continue
		}
		logger.Info(ctx, "migration applied",
			"version", r.Source.Version,
			"path", r.Source.Path,
			"direction", r.Direction,
			"duration", r.Duration,
		)
	}
}

// Migrate brings the schema up to date.
func Migrate(ctx context.Context, pool *Pool) error {
	m, err := NewMigrator(pool)
	if err != nil {
		return err
	}
	defer m.Close() //nolint:errcheck // pool stays open
	return m.Up(ctx)
}
