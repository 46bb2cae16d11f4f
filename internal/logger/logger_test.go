package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stdout)

	SetLevel("WARN")
	defer SetLevel("INFO")

	Info("hidden %d", 1)
	Warn("shown %d", 2)

	out := buf.String()
	assert.NotContains(t, out, "hidden 1")
	assert.Contains(t, out, "shown 2")
	assert.Contains(t, out, "level=warning")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"Warn", LevelWarn, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"verbose", LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConfigure(t *testing.T) {
	defer func() {
		_ = Configure("INFO", "text", "stdout")
	}()

	t.Run("JSONToFile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "gate.log")
		require.NoError(t, Configure("debug", "json", path))

		Debug("block %d ready", 7)

		data, err := os.ReadFile(path)
		require.NoError(t, err)

		line := strings.TrimSpace(string(data))
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		assert.Equal(t, "block 7 ready", entry["msg"])
		assert.Equal(t, "debug", entry["level"])
	})

	t.Run("RejectsUnknownFormat", func(t *testing.T) {
		err := Configure("info", "xml", "stdout")
		assert.Error(t, err)
	})

	t.Run("RejectsUnknownLevel", func(t *testing.T) {
		err := Configure("loud", "text", "stdout")
		assert.Error(t, err)
	})
}
