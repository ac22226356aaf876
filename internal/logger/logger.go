// Package logger wraps zap with the run, record and kind context used by
// the planner and the plan stores.
package logger

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/dbsmedya/entityplan/internal/config"
)

// Logger is a sugared zap logger that keeps its base logger for Sync.
type Logger struct {
	*zap.SugaredLogger
	base *zap.Logger
}

func wrap(base *zap.Logger) *Logger {
	return &Logger{SugaredLogger: base.Sugar(), base: base}
}

// New builds a Logger from the logging section of the configuration.
// Log lines never go to stdout unless asked for, since stdout carries
// plan documents.
func New(cfg *config.LoggingConfig) (*Logger, error) {
	ws, err := buildWriters(cfg.Output)
	if err != nil {
		return nil, err
	}
	core := zapcore.NewCore(buildEncoder(cfg.Format), ws, parseLevel(cfg.Level))
	return wrap(zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))), nil
}

// NewDefault logs text at info level to stderr.
func NewDefault() *Logger {
	l, _ := New(&config.LoggingConfig{Level: "info", Format: "text", Output: "stderr"})
	return l
}

// NewNop discards everything.
func NewNop() *Logger {
	return wrap(zap.NewNop())
}

// parseLevel maps a configured level name to a zap level. Unknown and
// empty names mean info.
func parseLevel(level string) zapcore.Level {
	l, err := zapcore.ParseLevel(level)
	if err != nil || level == "" {
		return zapcore.InfoLevel
	}
	switch l {
	case zapcore.DebugLevel, zapcore.InfoLevel, zapcore.WarnLevel, zapcore.ErrorLevel:
		return l
	}
	return zapcore.InfoLevel
}

func buildEncoder(format string) zapcore.Encoder {
	ec := zap.NewProductionEncoderConfig()
	ec.TimeKey = "time"
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	ec.EncodeDuration = zapcore.SecondsDurationEncoder

	if format == "json" {
		return zapcore.NewJSONEncoder(ec)
	}
	ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return zapcore.NewConsoleEncoder(ec)
}

// buildWriters resolves the output setting. A file path also mirrors to
// stderr.
func buildWriters(output string) (zapcore.WriteSyncer, error) {
	switch output {
	case "", "stderr":
		return zapcore.Lock(os.Stderr), nil
	case "stdout":
		return zapcore.Lock(os.Stdout), nil
	}

	f, err := os.OpenFile(output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return zapcore.NewMultiWriteSyncer(zapcore.AddSync(f), zapcore.Lock(os.Stderr)), nil
}

func (l *Logger) with(args ...any) *Logger {
	return &Logger{SugaredLogger: l.SugaredLogger.With(args...), base: l.base}
}

// WithRun tags entries with the planning run id.
func (l *Logger) WithRun(runID string) *Logger { return l.with("run", runID) }

// WithRecord tags entries with a record key.
func (l *Logger) WithRecord(key string) *Logger { return l.with("record", key) }

// WithKind tags entries with an entity kind.
func (l *Logger) WithKind(kind string) *Logger { return l.with("kind", kind) }

// WithFields tags entries with arbitrary key/value pairs.
func (l *Logger) WithFields(fields map[string]any) *Logger {
	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return l.with(args...)
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.base.Sync()
}
