package observability

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imagesaver/config"
	"imagesaver/infrastructure/observability/adapters/noop"
)

func TestCreate_WithMetrics(t *testing.T) {
	cfg := config.DefaultConfig()
	var buf bytes.Buffer

	obs, err := Create(cfg, &buf)
	require.NoError(t, err)
	require.NotNil(t, obs.Registry)

	obs.Logger.Info("hello")
	assert.Contains(t, buf.String(), "hello")
}

func TestCreate_MetricsDisabled(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Handler.EnableMetrics = false

	obs, err := Create(cfg, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Nil(t, obs.Registry)
	assert.IsType(t, noop.Metrics{}, obs.Metrics)
}

func TestCreate_InvalidLevel(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.LogLevel = "chatty"

	_, err := Create(cfg, nil)
	assert.Error(t, err)
}

func TestCreate_NilConfig(t *testing.T) {
	_, err := Create(nil, nil)
	assert.Error(t, err)
}
