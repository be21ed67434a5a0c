package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		logFile string
		want    zapcore.Level
	}{
		{name: "debug", level: "debug", want: zapcore.DebugLevel},
		{name: "info", level: "info", want: zapcore.InfoLevel},
		{name: "warn", level: "warn", want: zapcore.WarnLevel},
		{name: "error", level: "error", want: zapcore.ErrorLevel},
		{name: "invalid level defaults to info", level: "invalid", want: zapcore.InfoLevel},
		{name: "fatal is capped to info", level: "fatal", want: zapcore.InfoLevel},
		{name: "with log file", level: "info", logFile: filepath.Join(t.TempDir(), "test.log"), want: zapcore.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.level, tt.logFile)
			require.NoError(t, err)
			require.NotNil(t, l)
			defer Sync(l)

			assert.True(t, l.Core().Enabled(tt.want))
			if tt.want > zapcore.DebugLevel {
				assert.False(t, l.Core().Enabled(tt.want-1))
			}
		})
	}
}

func TestNewWritesLogFile(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "app.log")

	l, err := New("info", logFile)
	require.NoError(t, err)
	l.Info("test message")
	Sync(l)

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "test message")
}

func TestSyncNil(t *testing.T) {
	assert.NotPanics(t, func() { Sync(nil) })
}
