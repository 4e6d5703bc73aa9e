package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PORT", "")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ModeLocal, cfg.Mode)
	require.Equal(t, "8080", cfg.Port)
	require.Equal(t, "memory", cfg.StorageBackend)
	require.Equal(t, "mock", cfg.LLMBackend)
	require.Equal(t, 30*time.Minute, cfg.IdleTimeout)
	require.Equal(t, "@every 10m", cfg.SweepSchedule)
	require.True(t, cfg.Analytics)
	require.Equal(t, "none", cfg.TracingExporter)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("SPARK_PORT", "9090")
	t.Setenv("SPARK_STORAGE_BACKEND", "sqlite")
	t.Setenv("SPARK_SQLITE_PATH", "/tmp/spark-test.db")
	t.Setenv("SPARK_IDLE_TIMEOUT", "5m")
	t.Setenv("SPARK_ANALYTICS", "false")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "9090", cfg.Port)
	require.Equal(t, "sqlite", cfg.StorageBackend)
	require.Equal(t, "/tmp/spark-test.db", cfg.SQLitePath)
	require.Equal(t, 5*time.Minute, cfg.IdleTimeout)
	require.False(t, cfg.Analytics)
}

func TestLoad_UnprefixedPort(t *testing.T) {
	t.Setenv("PORT", "7070")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "7070", cfg.Port)
}

func TestLoad_GCPModeDefaultsToVertex(t *testing.T) {
	t.Setenv("SPARK_MODE", "gcp")

	_, err := Load()
	require.ErrorContains(t, err, "SPARK_GCP_PROJECT")

	t.Setenv("SPARK_GCP_PROJECT", "demo-project")
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ModeGCP, cfg.Mode)
	require.Equal(t, "vertex", cfg.LLMBackend)
}

func TestValidate_Rejects(t *testing.T) {
	base := Config{StorageBackend: "memory", LLMBackend: "mock", IdleTimeout: time.Minute}

	bad := base
	bad.StorageBackend = "mongo"
	require.Error(t, bad.Validate())

	bad = base
	bad.LLMBackend = "anthropic"
	require.ErrorContains(t, bad.Validate(), "ANTHROPIC_API_KEY")

	bad = base
	bad.IdleTimeout = 0
	require.Error(t, bad.Validate())

	require.NoError(t, base.Validate())
}
