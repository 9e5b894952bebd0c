package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewInvalidLevel(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	assert.Error(t, err)
}

func TestNewInvalidEncoding(t *testing.T) {
	_, err := New(Config{Level: "info", Encoding: "xml"})
	assert.Error(t, err)
}

func TestResolveEncoding(t *testing.T) {
	tests := []struct {
		encoding string
		tty      bool
		want     string
	}{
		{"", true, "console"},
		{"", false, "json"},
		{"json", true, "json"},
		{"console", false, "console"},
	}
	for _, tt := range tests {
		got, err := resolveEncoding(tt.encoding, tt.tty)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "encoding %q tty %v", tt.encoding, tt.tty)
	}
}

func TestWithRunJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.json")
	logger, err := New(Config{Level: "debug", Encoding: "json", OutputPaths: []string{path}})
	require.NoError(t, err)

	id := NewRunID()
	_, err = uuid.Parse(id)
	require.NoError(t, err)

	logger.WithRun(id).Named("generator").Debug("fit done", zap.String("family", "trig"))
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, id, entry["run_id"])
	assert.Equal(t, "trig", entry["family"])
	assert.Equal(t, "generator", entry["logger"])
	assert.Equal(t, "fit done", entry["message"])
	assert.Equal(t, "debug", entry["level"])
}

func TestLevelFilters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.json")
	logger, err := New(Config{Level: "warn", Encoding: "json", OutputPaths: []string{path}})
	require.NoError(t, err)

	logger.Info("dropped")
	logger.Warn("kept")
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "dropped")
	assert.Contains(t, string(data), "kept")
}

func TestNopAndDefault(t *testing.T) {
	assert.NotNil(t, NewNop().Logger)
	assert.NotNil(t, NewDefault().Logger)
}
