package observability

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Logger struct {
	*zap.SugaredLogger
}

// LogConfig selects level and encoder. Development switches to the colored
// console encoder.
type LogConfig struct {
	Level       string
	Development bool
}

func NewLogger(cfg LogConfig) (*Logger, error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return nil, err
		}
	}

	zcfg := zap.NewProductionConfig()
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
		zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	l, err := zcfg.Build()
	if err != nil {
		return nil, err
	}
	return &Logger{l.Sugar()}, nil
}

// NewNop returns a logger that discards everything. Handy in tests.
func NewNop() *Logger { return &Logger{zap.NewNop().Sugar()} }

func (l *Logger) Sync() error { return l.SugaredLogger.Sync() }

// Zap exposes the structured logger for libraries that take *zap.Logger.
func (l *Logger) Zap() *zap.Logger { return l.Desugar() }
