package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewWritesJSONRecords(t *testing.T) {
	var buf bytes.Buffer
	logger, flush := New(Options{Level: "info", Format: "json", Output: &buf})

	logger.Info("flow finished", "flow", "document", "duration_ms", 12)
	logger.Debug("hidden")
	flush()

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &rec))
	assert.Equal(t, "flow finished", rec["msg"])
	assert.Equal(t, "document", rec["flow"])
	assert.EqualValues(t, 12, rec["duration_ms"])
}

func TestNewTeesIntoFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "studyflow.log")
	var buf bytes.Buffer
	logger, flush := New(Options{Level: "debug", Format: "console", File: path, MaxSizeMB: 1, Output: &buf})

	logger.Debug("to both outputs")
	flush()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to both outputs")
	assert.Contains(t, buf.String(), "to both outputs")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, zapcore.WarnLevel, ParseLevel("warning"))
	assert.Equal(t, zapcore.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("nonsense"))
}
