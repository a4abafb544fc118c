package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var L = zap.NewNop()

// Init builds the process logger at level ("debug", "info", "warn", "error").
// Unknown levels fall back to info.
func Init(level string) (*zap.Logger, error) {
	lvl := zapcore.InfoLevel
	if level != "" {
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			lvl = zapcore.InfoLevel
		}
	}

	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "ts"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.Level = zap.NewAtomicLevelAt(lvl)

	l, err := config.Build()
	if err != nil {
		return nil, err
	}

	L = l
	return l, nil
}

// WithComponent returns a logger tagged with a component field, for the
// sweeper, payment orchestrator, http layer and notification sinks.
func WithComponent(component string) *zap.Logger {
	return L.With(zap.String("component", component))
}
