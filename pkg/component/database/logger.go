package database

import (
	"context"
	"errors"
	"time"

	gormlogger "gorm.io/gorm/logger"

	"github.com/kart-io/logger"
)

// GormLogger routes GORM logs to the global logger. Failed and slow
// queries carry the SQL text, affected rows and duration.
type GormLogger struct {
	LogLevel                  gormlogger.LogLevel
	SlowThreshold             time.Duration
	IgnoreRecordNotFoundError bool
}

var _ gormlogger.Interface = (*GormLogger)(nil)

// NewGormLogger creates a GormLogger.
func NewGormLogger(logLevel gormlogger.LogLevel, slowThreshold time.Duration, ignoreRecordNotFoundError bool) *GormLogger {
	return &GormLogger{
		LogLevel:                  logLevel,
		SlowThreshold:             slowThreshold,
		IgnoreRecordNotFoundError: ignoreRecordNotFoundError,
	}
}

// LogMode returns a copy at the given level.
func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	cp := *l
	cp.LogLevel = level
	return &cp
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= gormlogger.Info {
		logger.Global().WithCtx(ctx).Infof(msg, data...)
	}
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= gormlogger.Warn {
		logger.Global().WithCtx(ctx).Warnf(msg, data...)
	}
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= gormlogger.Error {
		logger.Global().WithCtx(ctx).Errorf(msg, data...)
	}
}

// Trace logs one statement at the level its outcome calls for.
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.LogLevel <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	failed := err != nil && !(l.IgnoreRecordNotFoundError && errors.Is(err, gormlogger.ErrRecordNotFound))
	slow := l.SlowThreshold > 0 && elapsed > l.SlowThreshold

	var emit func(msg string, keysAndValues ...interface{})
	log := logger.Global().WithCtx(ctx)
	switch {
	case failed && l.LogLevel >= gormlogger.Error:
		emit = log.Errorw
	case slow && l.LogLevel >= gormlogger.Warn:
		emit = log.Warnw
	case l.LogLevel >= gormlogger.Info:
		emit = log.Debugw
	default:
		return
	}

	sql, rows := fc()
	kv := []interface{}{"sql", sql, "rows", rows, "duration_ms", elapsed.Seconds() * 1e3}
	switch {
	case failed:
		emit("Database query failed", append(kv, "error", err.Error())...)
	case slow:
		emit("Slow database query", append(kv, "threshold_ms", l.SlowThreshold.Seconds()*1e3)...)
	default:
		emit("Database query executed", kv...)
	}
}
