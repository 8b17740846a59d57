package postgres

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrator_SourcesAreOrdered(t *testing.T) {
	cfg, err := pgx.ParseConfig("postgres://lms@localhost:5432/lms?sslmode=disable")
	require.NoError(t, err)

	// Listing sources never opens a connection.
	m, err := newMigrator(stdlib.OpenDB(*cfg))
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })

	sources := m.Sources()
	require.NotEmpty(t, sources)
	for i, s := range sources {
		assert.Equal(t, int64(i+1), s.Version, s.Path)
		assert.True(t, strings.HasSuffix(s.Path, ".sql"), s.Path)
	}
}

func TestMigrations_Annotated(t *testing.T) {
	files, err := fs.Glob(migrationsFS, "migrations/*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, name := range files {
		raw, err := migrationsFS.ReadFile(name)
		require.NoError(t, err)
		body := string(raw)

		up := strings.Index(body, "-- +goose Up")
		down := strings.Index(body, "-- +goose Down")
		assert.GreaterOrEqual(t, up, 0, "%s has no up section", name)
		assert.Greater(t, down, up, "%s needs a down section after up", name)
		assert.Equal(t,
			strings.Count(body, "-- +goose StatementBegin"),
			strings.Count(body, "-- +goose StatementEnd"),
			"%s has unbalanced statement blocks", name)
	}
}
