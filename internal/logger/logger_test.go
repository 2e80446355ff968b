package logger

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerCreatesLogFile(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "nested", "certify.log")

	l, err := NewLogger(Options{Verbose: true, LogFile: logFile})
	require.NoError(t, err)
	l.Info("plan %s started", "abc")

	assert.FileExists(t, logFile)
}

func TestRecordingLogger(t *testing.T) {
	l := &RecordingLogger{}
	l.Debug("step %d", 1)
	l.Error("failed: %s", "boom")

	assert.Equal(t, []string{"debug: step 1", "error: failed: boom"}, l.All())
}
