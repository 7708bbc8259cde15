package kit

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func NewLogger(service string) *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.InitialFields = map[string]any{"service": service}
	l, _ := cfg.Build()
	return l
}

// NewConsoleLogger writes "<timestamp> INFO <message> {fields}" lines to
// stderr, for command line tools.
func NewConsoleLogger(service string) *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	cfg.Sampling = nil
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.EncoderConfig.CallerKey = zapcore.OmitKey
	cfg.EncoderConfig.StacktraceKey = zapcore.OmitKey
	l, _ := cfg.Build(zap.Fields(zap.String("service", service)))
	return l
}
