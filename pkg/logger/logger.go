// Package logger builds the zap loggers used by the binaries.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a logger at level. With a log file the output is JSON written
// to both the file and stdout; otherwise it is the development console format.
// Unknown levels fall back to info.
func New(level string, logFile string) (*zap.Logger, error) {
	var config zap.Config
	if logFile != "" {
		config = zap.NewProductionConfig()
		config.OutputPaths = []string{logFile, "stdout"}
	} else {
		config = zap.NewDevelopmentConfig()
	}

	lvl, err := zapcore.ParseLevel(level)
	if err != nil || lvl > zapcore.ErrorLevel {
		lvl = zapcore.InfoLevel
	}
	config.Level = zap.NewAtomicLevelAt(lvl)

	return config.Build()
}

// Sync flushes l, ignoring the errors some terminals report on stdout.
func Sync(l *zap.Logger) {
	if l != nil {
		_ = l.Sync()
	}
}
