// Package logging builds the process logger. Callers receive a *slog.Logger;
// records are encoded and written by zap, optionally teed into a rotating file.
package logging

import (
	"io"
	"log/slog"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Options struct {
	Level      string
	Format     string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int

	// Output overrides stdout, mostly for tests.
	Output io.Writer
}

// New returns the logger and a flush func to call before exit.
func New(opts Options) (*slog.Logger, func()) {
	level := ParseLevel(opts.Level)

	var out zapcore.WriteSyncer = zapcore.Lock(os.Stdout)
	if opts.Output != nil {
		out = zapcore.AddSync(opts.Output)
	}

	cores := []zapcore.Core{zapcore.NewCore(newEncoder(opts.Format), out, level)}

	var rotator *lumberjack.Logger
	if opts.File != "" {
		rotator = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   true,
		}
		cores = append(cores, zapcore.NewCore(newEncoder("json"), zapcore.AddSync(rotator), level))
	}

	core := zapcore.NewTee(cores...)
	logger := slog.New(zapslog.NewHandler(core))

	return logger, func() {
		_ = core.Sync()
		if rotator != nil {
			_ = rotator.Close()
		}
	}
}

// Discard is used by tests and by components constructed without a logger.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ParseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zap.DebugLevel
	case "warn", "warning":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}

func newEncoder(format string) zapcore.Encoder {
	if format == "console" {
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		return zapcore.NewConsoleEncoder(cfg)
	}
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "time"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	return zapcore.NewJSONEncoder(cfg)
}
