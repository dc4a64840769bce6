package logger

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

// defaultMaxStatementLength bounds logged SQL. Option reconciliation issues
// IN lists of up to a thousand hashes.
const defaultMaxStatementLength = 2048

// SQLLogConfig controls how database statements are logged
type SQLLogConfig struct {
	// Level is one of silent, error, warn, info or debug
	Level         string
	SlowThreshold time.Duration
	// MaxStatementLength truncates logged SQL; zero uses the default
	MaxStatementLength int
}

// SQLLogger routes GORM statements through zap. Each entry carries the
// run and connection fields of the job that issued it.
type SQLLogger struct {
	log    *zap.Logger
	level  gormlogger.LogLevel
	slow   time.Duration
	maxLen int
}

// NewSQLLogger creates the GORM logger used by the database pool
func NewSQLLogger(base *zap.Logger, cfg SQLLogConfig) *SQLLogger {
	if base == nil {
		base = zap.NewNop()
	}
	maxLen := cfg.MaxStatementLength
	if maxLen <= 0 {
		maxLen = defaultMaxStatementLength
	}
	return &SQLLogger{
		log:    base.Named("sql"),
		level:  sqlLogLevel(cfg.Level),
		slow:   cfg.SlowThreshold,
		maxLen: maxLen,
	}
}

// LogMode implements gormlogger.Interface
func (l *SQLLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	c := *l
	c.level = level
	return &c
}

// Info implements gormlogger.Interface
func (l *SQLLogger) Info(ctx context.Context, msg string, data ...any) {
	if l.level >= gormlogger.Info {
		l.log.Sugar().With(fieldsAsArgs(ContextFields(ctx))...).Infof(msg, data...)
	}
}

// Warn implements gormlogger.Interface
func (l *SQLLogger) Warn(ctx context.Context, msg string, data ...any) {
	if l.level >= gormlogger.Warn {
		l.log.Sugar().With(fieldsAsArgs(ContextFields(ctx))...).Warnf(msg, data...)
	}
}

// Error implements gormlogger.Interface
func (l *SQLLogger) Error(ctx context.Context, msg string, data ...any) {
	if l.level >= gormlogger.Error {
		l.log.Sugar().With(fieldsAsArgs(ContextFields(ctx))...).Errorf(msg, data...)
	}
}

// Trace logs one executed statement. Missing records are normal lookups
// (an unknown option hash, a product not yet mirrored) and are not logged.
func (l *SQLLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}
	if err != nil && errors.Is(err, gormlogger.ErrRecordNotFound) {
		return
	}

	elapsed := time.Since(begin)
	failed := err != nil && l.level >= gormlogger.Error
	slow := l.slow > 0 && elapsed > l.slow && l.level >= gormlogger.Warn
	if !failed && !slow && l.level < gormlogger.Info {
		return
	}

	sql, rows := fc()
	fields := append(l.statementFields(sql), zap.Duration("elapsed", elapsed))
	if rows >= 0 {
		fields = append(fields, zap.Int64("rows_affected", rows))
	}
	fields = append(fields, ContextFields(ctx)...)

	switch {
	case failed:
		l.log.Error("Database statement failed", append(fields, zap.Error(err))...)
	case slow:
		l.log.Warn("Slow database statement", append(fields, zap.Duration("threshold", l.slow))...)
	default:
		l.log.Debug("Database statement", fields...)
	}
}

func (l *SQLLogger) statementFields(sql string) []zap.Field {
	sql = strings.TrimSpace(sql)
	if len(sql) <= l.maxLen {
		return []zap.Field{zap.String("statement", sql)}
	}
	return []zap.Field{
		zap.String("statement", sql[:l.maxLen]),
		zap.Int("statement_length", len(sql)),
	}
}

func fieldsAsArgs(fields []zap.Field) []any {
	args := make([]any, len(fields))
	for i, f := range fields {
		args[i] = f
	}
	return args
}

// sqlLogLevel maps the database.log_level setting; unknown values warn
func sqlLogLevel(level string) gormlogger.LogLevel {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "info", "debug":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}
