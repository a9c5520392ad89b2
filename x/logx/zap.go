//go:build !tinygo

package logx

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type zapLogger struct{ *zap.SugaredLogger }

// FromZap adapts a zap logger.
func FromZap(l *zap.Logger) Logger { return zapLogger{l.Sugar()} }

func (z zapLogger) Named(name string) Logger { return zapLogger{z.SugaredLogger.Named(name)} }

// NewZap builds the host logger: console encoding, ISO8601 timestamps, no
// sampling. The returned func flushes buffered entries.
func NewZap(level string) (Logger, func(), error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.Sampling = nil
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, nil, err
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	l, err := cfg.Build()
	if err != nil {
		return nil, nil, err
	}
	return FromZap(l), func() { _ = l.Sync() }, nil
}
