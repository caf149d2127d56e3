package telemetry

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func useRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))

	prevTP, prevProp := otel.GetTracerProvider(), otel.GetTextMapPropagator()
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTP)
		otel.SetTextMapPropagator(prevProp)
		_ = tp.Shutdown(context.Background())
	})
	return rec
}

func TestEndSpanStatus(t *testing.T) {
	rec := useRecorder(t)

	_, ok := StartSpan(context.Background(), "profile.apply", attribute.String("user.id", "u1"))
	EndSpan(ok, nil)
	_, failed := StartSpan(context.Background(), "profile_media.upload")
	EndSpan(failed, errors.New("connection reset"))

	spans := rec.Ended()
	require.Len(t, spans, 2)

	assert.Equal(t, "profile.apply", spans[0].Name())
	assert.Equal(t, codes.Ok, spans[0].Status().Code)
	assert.Contains(t, spans[0].Attributes(), attribute.String("user.id", "u1"))

	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.Equal(t, "connection reset", spans[1].Status().Description)
	require.Len(t, spans[1].Events(), 1)
	assert.Equal(t, "exception", spans[1].Events()[0].Name)
}

func TestInstrumentedTransportPropagatesTrace(t *testing.T) {
	rec := useRecorder(t)

	var traceparent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceparent = r.Header.Get("traceparent")
	}))
	defer srv.Close()

	ctx, parent := StartSpan(context.Background(), "profile.get")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := NewInstrumentedHTTPClient(0).Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	EndSpan(parent, nil)

	assert.Contains(t, traceparent, parent.SpanContext().TraceID().String())
	assert.Len(t, rec.Ended(), 2)
}

func TestDisabledTracer(t *testing.T) {
	tp, err := InitTracer(Config{Enabled: false})
	require.NoError(t, err)
	assert.Nil(t, tp)
	assert.NoError(t, Shutdown(context.Background(), tp))
}
