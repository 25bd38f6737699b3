package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig holds the GORM tracing settings
type DBTracingConfig struct {
	Enabled bool
	// LogFullSQL keeps bound variables in span statements
	LogFullSQL      bool
	SlowQueryThresh time.Duration
	DBSystem        string
}

// DefaultDBTracingConfig returns tracing off with a 200ms slow query mark
func DefaultDBTracingConfig() DBTracingConfig {
	return DBTracingConfig{
		SlowQueryThresh: 200 * time.Millisecond,
		DBSystem:        "postgresql",
	}
}

type queryStartKey struct{}

// RegisterDBTracing installs the otelgorm plugin plus callbacks that mark
// slow and failed statements on the active span
func RegisterDBTracing(db *gorm.DB, cfg DBTracingConfig, logger *zap.Logger) error {
	if !cfg.Enabled {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := []otelgorm.Option{otelgorm.WithDBName(cfg.DBSystem)}
	if !cfg.LogFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}

	cb := db.Callback()
	after := slowQueryCallback(cfg.SlowQueryThresh)
	steps := []func() error{
		func() error { return cb.Create().Before("gorm:create").Register("ledger_timing:before_create", markQueryStart) },
		func() error { return cb.Query().Before("gorm:query").Register("ledger_timing:before_query", markQueryStart) },
		func() error { return cb.Update().Before("gorm:update").Register("ledger_timing:before_update", markQueryStart) },
		func() error { return cb.Delete().Before("gorm:delete").Register("ledger_timing:before_delete", markQueryStart) },
		func() error { return cb.Row().Before("gorm:row").Register("ledger_timing:before_row", markQueryStart) },
		func() error { return cb.Raw().Before("gorm:raw").Register("ledger_timing:before_raw", markQueryStart) },
		func() error { return cb.Create().After("gorm:create").Register("ledger_timing:after_create", after) },
		func() error { return cb.Query().After("gorm:query").Register("ledger_timing:after_query", after) },
		func() error { return cb.Update().After("gorm:update").Register("ledger_timing:after_update", after) },
		func() error { return cb.Delete().After("gorm:delete").Register("ledger_timing:after_delete", after) },
		func() error { return cb.Row().After("gorm:row").Register("ledger_timing:after_row", after) },
		func() error { return cb.Raw().After("gorm:raw").Register("ledger_timing:after_raw", after) },
	}
	for _, register := range steps {
		if err := register(); err != nil {
			return err
		}
	}

	logger.Info("Database tracing enabled",
		zap.Bool("log_full_sql", cfg.LogFullSQL),
		zap.Duration("slow_query_threshold", cfg.SlowQueryThresh))
	return nil
}

func markQueryStart(db *gorm.DB) {
	if db.Statement.Context != nil {
		db.Statement.Context = context.WithValue(db.Statement.Context, queryStartKey{}, time.Now())
	}
}

func slowQueryCallback(threshold time.Duration) func(*gorm.DB) {
	return func(db *gorm.DB) {
		ctx := db.Statement.Context
		if ctx == nil {
			return
		}
		span := trace.SpanFromContext(ctx)
		if !span.IsRecording() {
			return
		}
		if db.Statement.Table != "" {
			span.SetAttributes(attribute.String("db.sql.table", db.Statement.Table))
		}
		span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))
		if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
			span.SetStatus(codes.Error, db.Error.Error())
			span.RecordError(db.Error)
		}
		start, ok := ctx.Value(queryStartKey{}).(time.Time)
		if !ok {
			return
		}
		if elapsed := time.Since(start); elapsed > threshold {
			span.SetAttributes(
				attribute.Bool("db.slow_query", true),
				attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
			)
		}
	}
}
