package otel

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

func recorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	prevTP, prevProp := otel.GetTracerProvider(), otel.GetTextMapPropagator()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr)))
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTP)
		otel.SetTextMapPropagator(prevProp)
	})
	return sr
}

func TestInitDisabledIsNoop(t *testing.T) {
	shutdown, err := Init(Config{Enabled: false}, zap.NewNop())
	require.NoError(t, err)
	shutdown()
}

func TestGinMiddlewareRecordsServerSpan(t *testing.T) {
	sr := recorder(t)
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(GinMiddleware())
	r.GET("/items/:id", func(c *gin.Context) { c.Status(http.StatusServiceUnavailable) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/items/42", nil))

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "GET /items/:id", spans[0].Name())
	assert.Equal(t, trace.SpanKindServer, spans[0].SpanKind())
	assert.Equal(t, "Error", spans[0].Status().Code.String())
}

func TestMQSpansPropagateThroughHeaders(t *testing.T) {
	sr := recorder(t)
	headers := map[string]interface{}{}

	pubCtx, pub := MQPublishSpan(context.Background(), "notify.report", "secondbrain.events", headers)
	pub.End()
	require.Contains(t, headers, "traceparent")

	_, consume := MQConsumeSpan(context.Background(), "notify.report", "notify.q", headers)
	consume.End()

	spans := sr.Ended()
	require.Len(t, spans, 2)
	want := trace.SpanContextFromContext(pubCtx).TraceID()
	assert.Equal(t, want, spans[1].SpanContext().TraceID())
	assert.Equal(t, spans[0].SpanContext().SpanID(), spans[1].Parent().SpanID())
}

func TestMQHeaderCarrierNilHeaders(t *testing.T) {
	c := NewMQHeaderCarrier(nil)
	c.Set("traceparent", "x")
	assert.Equal(t, "", c.Get("traceparent"))
	assert.Empty(t, c.Keys())
}

func TestNewSampler(t *testing.T) {
	assert.Contains(t, newSampler(0).Description(), "AlwaysOnSampler")
	assert.Contains(t, newSampler(1.5).Description(), "AlwaysOnSampler")
	assert.Contains(t, newSampler(0.25).Description(), "TraceIDRatioBased{0.25}")
}
