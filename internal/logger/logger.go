// Package logger builds the zap loggers used by the server, the worker and
// docctl, and holds the helpers that keep user supplied text safe in logs.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options controls how a logger is built
type Options struct {
	// Service is attached to every entry as the "service" field
	Service string
	// Debug lowers the level to debug
	Debug bool
	// Development switches to the colored console encoder
	Development bool
}

// New builds a JSON logger, or a console logger when Development is set
func New(opts Options) (*zap.Logger, error) {
	var cfg zap.Config
	if opts.Development {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
		cfg.Encoding = "json"
		cfg.EncoderConfig = jsonEncoderConfig()
		// document bodies can be large; stack traces on every error add noise
		cfg.DisableStacktrace = !opts.Debug
	}
	cfg.Level = zap.NewAtomicLevelAt(Level(opts.Debug))

	var fields []zap.Option
	if opts.Service != "" {
		fields = append(fields, zap.Fields(zap.String("service", opts.Service)))
	}
	return cfg.Build(fields...)
}

// Level maps the debug switch onto a zap level
func Level(debug bool) zapcore.Level {
	if debug {
		return zapcore.DebugLevel
	}
	return zapcore.InfoLevel
}

func jsonEncoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
}

// Sync flushes buffered entries. Errors from syncing a terminal are expected
// and ignored by callers.
func Sync(l *zap.Logger) error {
	if l == nil {
		return nil
	}
	return l.Sync()
}
