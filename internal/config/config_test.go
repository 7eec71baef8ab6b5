package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PAYFLOW_POLL_INTERVAL", "")
	t.Setenv("PAYFLOW_MAX_ATTEMPTS", "")
	t.Setenv("KAFKA_BROKER", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, cfg.PollInterval)
	assert.Equal(t, 60, cfg.MaxAttempts)
	assert.Equal(t, "payflow-events", cfg.EventsTopic)
	assert.False(t, cfg.EventsEnabled())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PAYFLOW_POLL_INTERVAL", "250")
	t.Setenv("PAYFLOW_MAX_ATTEMPTS", "3")
	t.Setenv("KAFKA_BROKER", "kafka:9092")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.True(t, cfg.EventsEnabled())
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("PAYFLOW_MAX_ATTEMPTS", "many")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("PAYFLOW_MAX_ATTEMPTS", "0")
	_, err = Load()
	assert.Error(t, err)
}
