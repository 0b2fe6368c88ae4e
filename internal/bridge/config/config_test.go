package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "prod", cfg.Env)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "./var/data/warm_storage.bin", cfg.Storage.WarmStoragePath)
	assert.Equal(t, "./var/data/cold_storage.db", cfg.Storage.ColdStoragePath)
	assert.True(t, cfg.Scheduler.Enabled)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("BRIDGE_ENV", "dev")
	t.Setenv("BRIDGE_LOG_LEVEL", "debug")
	t.Setenv("BRIDGE_STORAGE_WARM", "/tmp/warm.bin")
	t.Setenv("BRIDGE_STORAGE_COLD", "/tmp/cold.db")
	t.Setenv("BRIDGE_SCHEDULER_INTERVAL", "1h")
	t.Setenv("BRIDGE_SCHEDULER_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "/tmp/warm.bin", cfg.Storage.WarmStoragePath)
	assert.Equal(t, "/tmp/cold.db", cfg.Storage.ColdStoragePath)
	assert.False(t, cfg.Scheduler.Enabled)
}

func TestLoad_RejectsInvalidEnv(t *testing.T) {
	t.Setenv("BRIDGE_ENV", "staging")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_RejectsInvalidLogLevel(t *testing.T) {
	t.Setenv("BRIDGE_LOG_LEVEL", "verbose")
	_, err := Load()
	assert.Error(t, err)
}

func TestDefaultAppConfig_HasNonEmptyStoragePaths(t *testing.T) {
	cfg := DefaultAppConfig()
	assert.NotEmpty(t, cfg.Storage.WarmStoragePath)
	assert.NotEmpty(t, cfg.Storage.ColdStoragePath)
}
