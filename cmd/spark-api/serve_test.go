package main

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/spark-agent/internal/config"
)

func TestServeFlags_AcceptedOnRoot(t *testing.T) {
	t.Setenv("PORT", "")
	flags := rootCmd.PersistentFlags()
	t.Cleanup(func() {
		for _, name := range []string{"port", "storage", "llm"} {
			_ = flags.Set(name, "")
		}
	})

	require.NoError(t, rootCmd.ParseFlags([]string{"--port", "9000", "--storage", "memory", "--llm", "mock"}))

	cfg, err := config.FromViper(v)
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, "memory", cfg.StorageBackend)
	assert.Equal(t, "mock", cfg.LLMBackend)
}

func TestServeFlags_InheritedBySubcommand(t *testing.T) {
	t.Cleanup(func() { _ = rootCmd.PersistentFlags().Set("storage", "") })

	require.NoError(t, serveCmd.ParseFlags([]string{"--storage", "sqlite"}))
	assert.Equal(t, "sqlite", v.GetString("storage_backend"))
}

func TestWaitForStop(t *testing.T) {
	t.Run("signal", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.NoError(t, waitForStop(ctx, make(chan error)))
	})

	t.Run("clean close", func(t *testing.T) {
		errCh := make(chan error, 1)
		errCh <- http.ErrServerClosed
		assert.NoError(t, waitForStop(context.Background(), errCh))
	})

	t.Run("listener failure", func(t *testing.T) {
		errCh := make(chan error, 1)
		bindErr := errors.New("address already in use")
		errCh <- bindErr
		err := waitForStop(context.Background(), errCh)
		require.ErrorIs(t, err, bindErr)
	})
}
