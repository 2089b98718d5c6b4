package sqlstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goblin-dev/goblin/internal/store/storetest"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), "sqlite3", filepath.Join(t.TempDir(), "goblin.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) storetest.Store { return openTestStore(t) })
}

func TestOpen_CreatesDirectoryAndReopens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "goblin.db")
	ctx := context.Background()

	s, err := Open(ctx, "sqlite", path)
	require.NoError(t, err)
	assert.Equal(t, SQLite, s.Dialect())
	_, err = s.FindOrCreateCategory(ctx, "Mad", nil)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	// Schema creation is idempotent and data survives.
	s, err = Open(ctx, "sqlite3", path)
	require.NoError(t, err)
	defer s.Close()
	cats, err := s.ListCategories(ctx)
	require.NoError(t, err)
	assert.Len(t, cats, 1)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "mysql", "x")
	assert.ErrorContains(t, err, "unsupported database driver")
}

func TestParseDialect(t *testing.T) {
	tests := []struct {
		in   string
		want Dialect
	}{
		{"sqlite3", SQLite},
		{"SQLite", SQLite},
		{"postgres", Postgres},
		{"postgresql", Postgres},
	}
	for _, tt := range tests {
		got, err := ParseDialect(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestRebind(t *testing.T) {
	lite := &Store{dialect: SQLite}
	pg := &Store{dialect: Postgres}

	q := `SELECT id FROM t WHERE a = ? AND b IN (?, ?)`
	assert.Equal(t, q, lite.rebind(q))
	assert.Equal(t, `SELECT id FROM t WHERE a = $1 AND b IN ($2, $3)`, pg.rebind(q))
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "?", placeholders(1))
	assert.Equal(t, "?, ?, ?", placeholders(3))
}

func TestForeignKeysEnforced(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	missing := int64(42)
	_, err := s.FindOrCreateCategory(ctx, "orphan", &missing)
	assert.Error(t, err)
}
