package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestVerbosityToLevel(t *testing.T) {
	assert.Equal(t, zapcore.InfoLevel, VerbosityToLevel(VerbosityInfo))
	assert.Equal(t, zapcore.DebugLevel, VerbosityToLevel(VerbosityDebug))
	assert.Equal(t, zapcore.DebugLevel, VerbosityToLevel(5))
}

func TestNew_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{JSON: true, Output: &buf})

	log.Info("snapshot ingested", zap.String(FieldAsOf, "2023-04-01"))
	log.Debug("hidden at info level")
	require.NoError(t, log.Sync())

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "snapshot ingested", entry["msg"])
	assert.Equal(t, "2023-04-01", entry[FieldAsOf])
}

func TestNew_VerboseConsoleShowsDebug(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Verbosity: VerbosityDebug, Output: &buf})

	log.Debug("claim inserted")
	require.NoError(t, log.Sync())

	assert.Contains(t, buf.String(), "claim inserted")
	assert.Contains(t, buf.String(), "DEBUG")
}
