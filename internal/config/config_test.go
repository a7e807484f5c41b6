package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SESSION_SECRET", "secret123")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, ModeFork, cfg.Mode)
	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, 10*time.Minute, cfg.SessionTTL)
	assert.Positive(t, cfg.Workers)
}

func TestLoadRequiresSessionSecret(t *testing.T) {
	t.Setenv("SESSION_SECRET", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SESSION_SECRET")
}

func TestLoadRejectsUnknownMode(t *testing.T) {
	t.Setenv("SESSION_SECRET", "secret123")
	t.Setenv("SERVER_MODE", "THREADS")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SERVER_MODE")
}

func TestLoadRejectsBadWorkerCount(t *testing.T) {
	t.Setenv("SESSION_SECRET", "secret123")
	t.Setenv("WORKERS", "zero")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WORKERS")
}

func TestLoadClusterMode(t *testing.T) {
	t.Setenv("SESSION_SECRET", "secret123")
	t.Setenv("SERVER_MODE", "CLUSTER")
	t.Setenv("WORKERS", "4")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ModeCluster, cfg.Mode)
	assert.Equal(t, 4, cfg.Workers)
}

func TestLoadProductionRequiresStore(t *testing.T) {
	t.Setenv("SESSION_SECRET", "secret123")
	t.Setenv("APP_ENV", "production")
	t.Setenv("REDIS_URL", "")
	t.Setenv("DATABASE_URL", "")

	_, err := Load()
	require.Error(t, err)
}
