package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/prod-golang-projects/glucoflow/config"
)

func TestNewWritesJSONWithServiceFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "glucoflow.log")
	log, err := New(
		config.LogConfig{Level: "info", Format: "json", OutputPath: path},
		config.AppConfig{Name: "glucoflow", Environment: "test", Version: "1.2.3"},
	)
	require.NoError(t, err)

	log.Debug("hidden")
	log.Info("reading created")
	require.NoError(t, log.Sync())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "reading created", entry["msg"])
	assert.Equal(t, "glucoflow", entry["service"])
	assert.Equal(t, "test", entry["env"])
	assert.Equal(t, "1.2.3", entry["version"])
	assert.Contains(t, entry, "ts")
}

func TestNewRejectsBadSettings(t *testing.T) {
	_, err := New(config.LogConfig{Level: "loud", Format: "json"}, config.AppConfig{})
	assert.ErrorContains(t, err, "invalid log level")

	_, err = New(config.LogConfig{Level: "info", Format: "xml"}, config.AppConfig{})
	assert.ErrorContains(t, err, "invalid log format")
}
