package persistence

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/reviewdesk/draft-review-console/internal/config"
)

func TestOptionalBackendsStayDisabledWithoutConfig(t *testing.T) {
	logger := zap.NewNop()

	pg, err := NewPostgres(context.Background(), config.PostgresConfig{}, logger)
	require.NoError(t, err)
	assert.False(t, pg.Enabled())
	assert.Error(t, pg.Ping(context.Background()))
	assert.NotPanics(t, pg.Close)

	redis := NewRedis(config.RedisConfig{}, logger)
	assert.False(t, redis.Enabled())
	assert.Error(t, redis.Publish(context.Background(), "events", []byte("{}")))
	assert.Error(t, redis.Ping(context.Background()))
	assert.NotPanics(t, redis.Close)
}

func TestRunMigrationsSkipsWithoutPool(t *testing.T) {
	assert.NoError(t, RunMigrations(context.Background(), nil, "does-not-exist", zap.NewNop()))
}

func TestNewPostgresRejectsInvalidDSN(t *testing.T) {
	_, err := NewPostgres(context.Background(), config.PostgresConfig{DSN: "postgres://%zz"}, zap.NewNop())
	assert.Error(t, err)
}

func TestMigrationFilesAreSortedSQLOnly(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"002_b.sql", "001_a.sql", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("SELECT 1;"), 0o600))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "003_dir.sql"), 0o700))

	files, err := migrationFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"001_a.sql", "002_b.sql"}, files)

	_, err = migrationFiles(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}
