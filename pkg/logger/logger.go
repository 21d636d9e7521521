// Package logger provides structured logging for ocrmark using zap.
package logger

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap.SugaredLogger so engines can attach page/operation fields
type Logger struct {
	*zap.SugaredLogger
	config *Config
}

// Config holds logger configuration options
type Config struct {
	// Level is the minimum log level to output (debug, info, warn, error)
	Level string

	// Format determines output format: "console" or "json"
	Format string

	// OutputPath is an optional file that receives a copy of every entry
	OutputPath string
}

var defaultLogger *Logger

// New creates a logger from cfg. A nil cfg yields an info-level console logger.
func New(cfg *Config) (*Logger, error) {
	if cfg == nil {
		cfg = &Config{Level: "info", Format: "console"}
	}

	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	var encoder zapcore.Encoder
	if cfg.Format == "json" {
		encoder = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	} else {
		encCfg := zap.NewDevelopmentEncoderConfig()
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}

	syncs := []zapcore.WriteSyncer{zapcore.AddSync(os.Stderr)}
	if cfg.OutputPath != "" {
		file, err := os.OpenFile(cfg.OutputPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", cfg.OutputPath, err)
		}
		syncs = append(syncs, zapcore.AddSync(file))
	}

	core := zapcore.NewCore(encoder, zapcore.NewMultiWriteSyncer(syncs...), level)
	return &Logger{
		SugaredLogger: zap.New(core, zap.AddStacktrace(zapcore.ErrorLevel)).Sugar(),
		config:        cfg,
	}, nil
}

// Nop returns a logger that discards everything. Engines default to it.
func Nop() *Logger {
	return &Logger{SugaredLogger: zap.NewNop().Sugar(), config: &Config{Level: "error"}}
}

// Init installs the global logger used by Get
func Init(cfg *Config) error {
	l, err := New(cfg)
	if err != nil {
		return err
	}
	defaultLogger = l
	return nil
}

// Get returns the global logger, creating a default one on first use
func Get() *Logger {
	if defaultLogger == nil {
		l, _ := New(nil)
		defaultLogger = l
	}
	return defaultLogger
}

// WithFields returns a child logger carrying the given key/value pairs
func (l *Logger) WithFields(fields ...interface{}) *Logger {
	return &Logger{SugaredLogger: l.With(fields...), config: l.config}
}

// WithOperation tags entries with the engine operation that produced them
func (l *Logger) WithOperation(operation string) *Logger {
	return l.WithFields("operation", operation)
}

// WithPage tags entries with a 1-based page number
func (l *Logger) WithPage(page int) *Logger {
	return l.WithFields("page", page)
}

func parseLevel(level string) (zapcore.Level, error) {
	switch level {
	case "debug":
		return zapcore.DebugLevel, nil
	case "info", "":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("invalid log level %q", level)
	}
}
