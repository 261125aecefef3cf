// Package logger holds the process-wide zap logger. Library code receives
// its logger through gpm.Runtime; this package supplies the default and the
// CLI configuration.
package logger

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	globalLogger *zap.Logger
	nopLogger    = zap.NewNop()
	once         sync.Once
	mu           sync.RWMutex
)

// contextKey is the type for context keys
type contextKey string

const (
	// ModelKey is the context key for the model being queried, usually its
	// checkpoint path
	ModelKey contextKey = "model"
	// QueryKey is the context key for the query kind (logpdf, simulate)
	QueryKey contextKey = "query"
)

// Field names shared by model mutation logs.
const (
	ColumnKey = "column"
	ViewKey   = "view"
	RowIDKey  = "row_id"
)

// Config represents logger configuration
type Config struct {
	Level       string
	Development bool
	Encoding    string // json or console
	OutputPaths []string
}

// Init builds the global logger from cfg. Only the first call has effect.
func Init(cfg Config) error {
	var err error
	once.Do(func() {
		var l *zap.Logger
		l, err = newLogger(cfg)
		if err == nil {
			Set(l)
		}
	})
	return err
}

func newLogger(cfg Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	zapCfg := zap.NewProductionConfig()
	if cfg.Development {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.Sampling = nil
	if cfg.Encoding != "" {
		zapCfg.Encoding = cfg.Encoding
	}
	zapCfg.EncoderConfig.TimeKey = "timestamp"
	zapCfg.EncoderConfig.MessageKey = "message"
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if len(cfg.OutputPaths) > 0 {
		zapCfg.OutputPaths = cfg.OutputPaths
	}

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}

// Get returns the global logger. Before Init it returns a no-op logger so
// library users that never configure logging see no output.
func Get() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if globalLogger == nil {
		return nopLogger
	}
	return globalLogger
}

// Set replaces the global logger, e.g. with a zaptest logger in tests.
func Set(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	globalLogger = l
}

// WithContext returns base annotated with the model and query carried by
// ctx. A nil base means the global logger.
func WithContext(ctx context.Context, base *zap.Logger) *zap.Logger {
	if base == nil {
		base = Get()
	}
	for _, key := range []contextKey{ModelKey, QueryKey} {
		if v, ok := ctx.Value(key).(string); ok {
			base = base.With(zap.String(string(key), v))
		}
	}
	return base
}

// Sync flushes any buffered log entries
func Sync() error {
	return Get().Sync()
}
