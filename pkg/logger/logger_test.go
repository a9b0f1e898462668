package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_WritesJSONToOutputPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kitchen.log")

	log, err := New(Config{Level: "debug", OutputPaths: []string{path}})
	require.NoError(t, err)

	log.Debug("Applied theme")
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &entry))
	assert.Equal(t, "Applied theme", entry["msg"])
	assert.Equal(t, "debug", entry["level"])
	assert.Contains(t, entry, "caller")
}

func TestNew_LevelFiltering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kitchen.log")

	log, err := New(Config{Level: "not-a-level", OutputPaths: []string{path}})
	require.NoError(t, err)

	log.Debug("hidden")
	log.Info("shown")
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hidden")
	assert.Contains(t, string(data), "shown")
}

func TestNew_ConsoleFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kitchen.log")

	log, err := New(Config{Level: "info", Format: "console", Development: true, OutputPaths: []string{path}})
	require.NoError(t, err)
	log.Info("console line")
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "console line")
	assert.False(t, json.Valid(data))
}
