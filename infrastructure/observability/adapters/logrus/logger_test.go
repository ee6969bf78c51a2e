package logrus

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(Options{Level: "info", Format: "json", Output: &buf})
	require.NoError(t, err)

	scoped := logger.WithFields(map[string]interface{}{"component": "fetcher"})
	scoped.Info("image saved", "fid", "abc", "size", 42, "error", errors.New("boom"), "dangling")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))

	assert.Equal(t, "image saved", entry["msg"])
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "fetcher", entry["component"])
	assert.Equal(t, "abc", entry["fid"])
	assert.Equal(t, float64(42), entry["size"])
	assert.Equal(t, "boom", entry["error"])
	assert.Equal(t, "dangling", entry["extra"])
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(Options{Level: "warn", Format: "text", Output: &buf})
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("hidden")
	assert.Empty(t, buf.String())

	logger.Warn("visible")
	assert.Contains(t, buf.String(), "visible")
}

func TestNewLogger_RejectsBadOptions(t *testing.T) {
	_, err := NewLogger(Options{Level: "loud"})
	assert.Error(t, err)

	_, err = NewLogger(Options{Level: "info", Format: "xml"})
	assert.Error(t, err)
}
