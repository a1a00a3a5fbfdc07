package log

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"booktrader/internal/config"
)

func TestNewLogger_JSONFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	logger, err := NewLogger(config.LoggingConfig{
		Level:       "debug",
		Encoding:    "json",
		OutputPaths: []string{path},
	}, "test")
	require.NoError(t, err)

	logger.Debug("回放开始")
	require.NoError(t, logger.Sync())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(string(raw))), &entry))
	assert.Equal(t, "booktrader", entry["service"])
	assert.Equal(t, "test", entry["env"])
	assert.Equal(t, "DEBUG", entry["level"])
	assert.Equal(t, "回放开始", entry["msg"])
}

func TestNewLogger_BadLevel(t *testing.T) {
	_, err := NewLogger(config.LoggingConfig{Level: "loud"}, "")
	assert.Error(t, err)
}
