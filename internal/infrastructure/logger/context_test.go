package logger

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/schoolfees/backend/internal/domain/identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observed() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return zap.New(core), logs
}

func TestFromContext(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()), "missing logger falls back to no-op")

	log, _ := observed()
	assert.Same(t, log, FromContext(WithContext(context.Background(), log)))
}

func TestWithActor(t *testing.T) {
	log, logs := observed()
	actor := identity.Actor{UserID: uuid.New(), SchoolID: uuid.New(), Role: identity.RoleFinanceManager, Username: "bursar"}

	ctx, _ := WithRequestID(context.Background(), log, "req-1")
	ctx, enriched := WithActor(ctx, FromContext(ctx), actor)

	assert.Equal(t, "req-1", GetRequestID(ctx))
	assert.Equal(t, actor.SchoolID.String(), GetSchoolID(ctx))
	assert.Equal(t, actor.UserID.String(), GetUserID(ctx))

	enriched.Info("payment recorded")
	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, actor.SchoolID.String(), fields["school_id"])
	assert.Equal(t, "FINANCE_MANAGER", fields["role"])
}

func TestContextValues_Empty(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetRequestID(ctx))
	assert.Empty(t, GetSchoolID(ctx))
	assert.Empty(t, GetUserID(ctx))
	assert.Empty(t, GetTraceID(ctx))
}

func TestContextLogger_TraceCorrelation(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	log, logs := observed()
	ctx := WithContext(context.Background(), log)

	t.Run("without span", func(t *testing.T) {
		L(ctx).Info("no span")
		entry := logs.TakeAll()[0]
		assert.NotContains(t, entry.ContextMap(), "trace_id")
	})

	t.Run("with span", func(t *testing.T) {
		spanCtx, span := tp.Tracer("test").Start(ctx, "op")
		defer span.End()

		L(spanCtx).With(zap.String("invoice_number", "INV-2025-1-ADM001")).Warn("with span")
		entry := logs.TakeAll()[0]
		assert.Equal(t, zapcore.WarnLevel, entry.Level)
		assert.Equal(t, span.SpanContext().TraceID().String(), entry.ContextMap()["trace_id"])
		assert.Equal(t, "INV-2025-1-ADM001", entry.ContextMap()["invoice_number"])
		assert.Equal(t, span.SpanContext().TraceID().String(), GetTraceID(spanCtx))
	})

	t.Run("nil logger", func(t *testing.T) {
		cl := &ContextLogger{ctx: ctx}
		assert.NotPanics(t, func() { cl.Error("dropped") })
	})
}
