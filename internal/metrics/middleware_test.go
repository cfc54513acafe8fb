package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/trace"
)

func newRouter() http.Handler {
	r := chi.NewRouter()
	r.Get("/", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("home")) })
	r.Get("/*", func(w http.ResponseWriter, r *http.Request) { http.NotFound(w, r) })
	r.Get("/boom", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusBadGateway) })
	r.Get("/limited", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTooManyRequests) })
	return r
}

func TestMiddleware_RouteLabels(t *testing.T) {
	m := New()
	h := m.Middleware(newRouter())

	for _, p := range []string{"/", "/a.css", "/b/c.js", "/limited"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, p, nil))
	}
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/random/path", nil))

	tests := []struct {
		labels map[string]string
		want   float64
	}{
		{map[string]string{"method": "GET", "route": "/", "status": "200"}, 1},
		{map[string]string{"method": "GET", "route": "/*", "status": "404"}, 2},
		{map[string]string{"method": "GET", "route": "/limited", "status": "429"}, 1},
		{map[string]string{"method": "POST", "route": "unmatched", "status": "405"}, 1},
	}
	for _, tt := range tests {
		if got := counterValue(t, m, "http_requests_total", tt.labels); got != tt.want {
			t.Errorf("http_requests_total%v = %v, want %v", tt.labels, got, tt.want)
		}
	}
	if find(t, m, "http_requests_total", map[string]string{"route": "/random/path"}) != nil {
		t.Fatal("raw path must not be used as a label")
	}
}

func TestMiddleware_Errors(t *testing.T) {
	m := New()
	h := m.Middleware(newRouter())
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if got := counterValue(t, m, "http_errors_total", map[string]string{"route": "/boom"}); got != 1 {
		t.Fatalf("errors = %v", got)
	}
	if got := counterValue(t, m, "http_errors_total", map[string]string{"route": "/"}); got != 0 {
		t.Fatalf("2xx counted as error: %v", got)
	}
}

func TestMiddleware_SizeAndInflight(t *testing.T) {
	m := New()
	var inflight float64
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inflight = gaugeValue(t, m, "http_inflight_requests", nil)
		_, _ = w.Write([]byte("12345"))
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if inflight != 1 {
		t.Fatalf("inflight during request = %v", inflight)
	}
	if got := gaugeValue(t, m, "http_inflight_requests", nil); got != 0 {
		t.Fatalf("inflight after = %v", got)
	}
	size := find(t, m, "http_response_size_bytes", map[string]string{"route": "unmatched"})
	if size == nil || size.GetHistogram().GetSampleSum() != 5 {
		t.Fatalf("size histogram = %v", size)
	}
}

func TestTraceExemplar(t *testing.T) {
	if traceExemplar(context.Background()) != nil {
		t.Fatal("no span should give no exemplar")
	}

	tid, _ := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	sid, _ := trace.SpanIDFromHex("0102030405060708")

	unsampled := trace.ContextWithSpanContext(context.Background(),
		trace.NewSpanContext(trace.SpanContextConfig{TraceID: tid, SpanID: sid}))
	if traceExemplar(unsampled) != nil {
		t.Fatal("unsampled span should give no exemplar")
	}

	sampled := trace.ContextWithSpanContext(context.Background(),
		trace.NewSpanContext(trace.SpanContextConfig{TraceID: tid, SpanID: sid, TraceFlags: trace.FlagsSampled}))
	ex := traceExemplar(sampled)
	if ex["trace_id"] != tid.String() {
		t.Fatalf("exemplar = %v", ex)
	}
}
