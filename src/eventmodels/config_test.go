package eventmodels

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAppConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := LoadAppConfig("")
		require.NoError(t, err)

		assert.Equal(t, "trade-orders", cfg.Bus.OrdersTopic)
		assert.Equal(t, "filled-orders", cfg.Bus.FilledOrdersTopic)
		assert.Equal(t, "trade-orders-dlt", cfg.Bus.DeadLetterTopic)
		assert.Equal(t, 3, cfg.Bus.MaxAttempts)
		assert.Equal(t, time.Second, cfg.Bus.BackoffInterval.Std())
		assert.Equal(t, 5, cfg.Execution.FailureRatePct)
		assert.Equal(t, 5*time.Second, cfg.Portfolio.LockTimeout.Std())
	})

	t.Run("yaml file overrides defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		data := `
bus:
  partitions: 6
  backoffInterval: 250ms
execution:
  minDelay: 5ms
  maxDelay: 10ms
  failureRatePct: 0
portfolio:
  lockTimeout: 2s
`
		require.NoError(t, os.WriteFile(path, []byte(data), 0644))

		cfg, err := LoadAppConfig(path)
		require.NoError(t, err)

		assert.Equal(t, 6, cfg.Bus.Partitions)
		assert.Equal(t, 250*time.Millisecond, cfg.Bus.BackoffInterval.Std())
		assert.Equal(t, 5*time.Millisecond, cfg.Execution.MinDelay.Std())
		assert.Equal(t, 0, cfg.Execution.FailureRatePct)
		assert.Equal(t, 2*time.Second, cfg.Portfolio.LockTimeout.Std())

		// untouched sections keep their defaults
		assert.Equal(t, "trade-orders", cfg.Bus.OrdersTopic)
	})

	t.Run("environment overrides", func(t *testing.T) {
		t.Setenv("PORT", "8080")
		t.Setenv("DB_HOST", "db.internal")

		cfg, err := LoadAppConfig("")
		require.NoError(t, err)

		assert.Equal(t, "8080", cfg.HTTP.Port)
		assert.Equal(t, "db.internal", cfg.Database.Host)
	})

	t.Run("invalid offset reset rejected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("bus:\n  offsetReset: newest\n"), 0644))

		_, err := LoadAppConfig(path)
		require.Error(t, err)
	})

	t.Run("invalid duration rejected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("portfolio:\n  lockTimeout: soon\n"), 0644))

		_, err := LoadAppConfig(path)
		require.Error(t, err)
	})
}
