package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/schoolfees/backend/internal/domain/identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func setupTestTracer(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prevTP := otel.GetTracerProvider()
	prevProp := otel.GetTextMapPropagator()
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() {
		_ = tp.Shutdown(t.Context())
		otel.SetTracerProvider(prevTP)
		otel.SetTextMapPropagator(prevProp)
	})
	return recorder
}

func spanAttrs(span sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	out := make(map[attribute.Key]attribute.Value)
	for _, kv := range span.Attributes() {
		out[kv.Key] = kv.Value
	}
	return out
}

func TestTracing(t *testing.T) {
	recorder := setupTestTracer(t)
	actor := identity.Actor{UserID: uuid.New(), SchoolID: uuid.New(), Role: identity.RoleFinanceManager}

	r := gin.New()
	r.Use(
		RequestID(),
		TracingWithConfig(TracingConfig{ServiceName: "school-fees", Enabled: true}),
		SpanErrorMarker(),
		func(c *gin.Context) { c.Set(ActorKey, actor); c.Next() },
		TracingAttributeInjector(),
	)
	r.GET("/api/v1/invoices/:id", func(c *gin.Context) {
		if c.Param("id") == "missing" {
			c.Status(http.StatusNotFound)
			return
		}
		c.Status(http.StatusOK)
	})

	t.Run("route span carries caller", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/invoices/abc", nil)
		req.Header.Set(RequestIDHeader, "req-42")
		r.ServeHTTP(httptest.NewRecorder(), req)

		spans := recorder.Ended()
		require.NotEmpty(t, spans)
		span := spans[len(spans)-1]
		assert.Contains(t, span.Name(), "/api/v1/invoices/:id")

		attrs := spanAttrs(span)
		assert.Equal(t, "req-42", attrs["request_id"].AsString())
		assert.Equal(t, actor.SchoolID.String(), attrs["school.id"].AsString())
		assert.Equal(t, "FINANCE_MANAGER", attrs["user.role"].AsString())
		assert.NotEqual(t, codes.Error, span.Status().Code)
	})

	t.Run("client errors mark the span", func(t *testing.T) {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/invoices/missing", nil))

		spans := recorder.Ended()
		span := spans[len(spans)-1]
		assert.Equal(t, codes.Error, span.Status().Code)
		assert.Equal(t, int64(http.StatusNotFound), spanAttrs(span)["http.status_code"].AsInt64())
	})
}

func TestTracingDisabled(t *testing.T) {
	recorder := setupTestTracer(t)

	r := gin.New()
	r.Use(TracingWithConfig(TracingConfig{ServiceName: "school-fees"}), TracingAttributeInjector())
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, recorder.Ended())
}
