package tracing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func newRecordingTracer(t *testing.T) (trace.Tracer, *tracetest.SpanRecorder) {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return tp.Tracer("test"), recorder
}

func attrs(span sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	out := map[attribute.Key]attribute.Value{}
	for _, kv := range span.Attributes() {
		out[kv.Key] = kv.Value
	}
	return out
}

func TestHTTPMiddleware_NilTracerPassesThrough(t *testing.T) {
	called := false
	h := HTTPMiddleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	require.True(t, called)
}

func TestHTTPMiddleware_RecordsRouteAndStatus(t *testing.T) {
	tracer, recorder := newRecordingTracer(t)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /contacts/{id}", func(w http.ResponseWriter, r *http.Request) {
		require.True(t, trace.SpanFromContext(r.Context()).SpanContext().IsValid())
		w.WriteHeader(http.StatusNotFound)
	})
	h := HTTPMiddleware(tracer)(mux)

	req := httptest.NewRequest(http.MethodGet, "/contacts/7", nil)
	req = req.WithContext(ContextWithRequestID(req.Context(), "req-42"))
	h.ServeHTTP(httptest.NewRecorder(), req)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	span := spans[0]
	require.Equal(t, "http.GET /contacts/{id}", span.Name())
	require.Equal(t, trace.SpanKindServer, span.SpanKind())

	a := attrs(span)
	require.Equal(t, "GET", a[AttrHTTPMethod].AsString())
	require.Equal(t, "GET /contacts/{id}", a[AttrHTTPRoute].AsString())
	require.Equal(t, int64(404), a[AttrHTTPStatusCode].AsInt64())
	require.Equal(t, "req-42", a[AttrRequestID].AsString())
	require.Equal(t, codes.Ok, span.Status().Code, "4xx is a client error, not a server failure")
}

func TestHTTPMiddleware_ServerErrorMarksSpan(t *testing.T) {
	tracer, recorder := newRecordingTracer(t)

	h := HTTPMiddleware(tracer)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/contacts", nil))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	require.Equal(t, "http.POST", spans[0].Name(), "unmatched requests keep the method-only name")
	require.Equal(t, codes.Error, spans[0].Status().Code)
	require.Equal(t, int64(500), attrs(spans[0])[AttrHTTPStatusCode].AsInt64())
}

func TestStatusRecorder_FirstStatusWins(t *testing.T) {
	w := httptest.NewRecorder()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

	_, _ = rec.Write([]byte("ok"))
	rec.WriteHeader(http.StatusTeapot)
	rec.Flush()

	require.Equal(t, http.StatusOK, rec.status)
	require.True(t, w.Flushed)
	require.Equal(t, w, rec.Unwrap())
}
