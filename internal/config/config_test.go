package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Database.Driver = "postgres"
	cfg.Database.DSN = "postgres://goblin@localhost/goblin?sslmode=disable"
	cfg.Import.Atomic = true
	cfg.Detection.MinConfidence = 0.75
	cfg.Spending.Depth = -1
	cfg.Metrics.Textfile = "/var/lib/node_exporter/goblin.prom"

	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, Save(path, cfg))

	got, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres", got.Database.Driver)
	assert.Equal(t, cfg.Database.DSN, got.Database.DSN, "non-sqlite DSNs are not paths")
	assert.True(t, got.Import.Atomic)
	assert.False(t, got.Import.Strict)
	assert.Equal(t, ";,", got.Import.Delimiters)
	assert.InDelta(t, 0.75, got.Detection.MinConfidence, 0.001)
	assert.Equal(t, 2, got.Detection.MinOccurrences)
	assert.Equal(t, -1, got.Spending.Depth)
	assert.Equal(t, "/var/lib/node_exporter/goblin.prom", got.Metrics.Textfile)
}

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.Equal(t, "goblin.db", cfg.Database.DSN)
	assert.Equal(t, "import", cfg.Import.Dir)
	assert.Equal(t, []rune{';', ','}, cfg.DelimiterRunes())
	assert.InDelta(t, 0.6, cfg.Detection.MinConfidence, 0.001)
	assert.Equal(t, 2, cfg.Detection.MinOccurrences)
	assert.Equal(t, 1, cfg.Spending.Depth)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Empty(t, cfg.Metrics.Textfile)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(path, []byte("detection:\n  min_confidence: 0.8\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.InDelta(t, 0.8, cfg.Detection.MinConfidence, 0.001)
	assert.Equal(t, 2, cfg.Detection.MinOccurrences)
	assert.Equal(t, filepath.Join(dir, "goblin.db"), cfg.Database.DSN)
	assert.Equal(t, filepath.Join(dir, "import"), cfg.Import.Dir)
}

func TestLoad_TabDelimiter(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte("import:\n  delimiters: \"\\t;\"\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []rune{'\t', ';'}, cfg.DelimiterRunes())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("GOBLIN_DB_DRIVER", "postgres")
	t.Setenv("GOBLIN_DB_DSN", "postgres://localhost/goblin")
	t.Setenv("GOBLIN_LOG_LEVEL", "debug")

	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, Save(path, Default()))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "postgres://localhost/goblin", cfg.Database.DSN)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)

	require.NoError(t, os.WriteFile(path, []byte("detection:\n  min_confidence: 1.5\n"), 0o644))
	_, err := Load(path)
	assert.ErrorContains(t, err, "min_confidence")

	require.NoError(t, os.WriteFile(path, []byte("detection:\n  min_occurrences: 1\n"), 0o644))
	_, err = Load(path)
	assert.ErrorContains(t, err, "min_occurrences")

	require.NoError(t, os.WriteFile(path, []byte("import: [nope"), 0o644))
	_, err = Load(path)
	assert.ErrorContains(t, err, "parsing config")
}

func TestLoadNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadOrDefault_Missing(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadOrDefault(filepath.Join(dir, FileName))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "goblin.db"), cfg.Database.DSN)
	assert.Equal(t, "sqlite3", cfg.Database.Driver)
}

func TestYAMLFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, Save(path, Default()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	contents := string(data)

	assert.Contains(t, contents, "driver: sqlite3")
	assert.Contains(t, contents, "dsn: goblin.db")
	assert.Contains(t, contents, "min_confidence: 0.6")
	assert.Contains(t, contents, "atomic: false")
	assert.NotContains(t, contents, "textfile")
}
