package opshttp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/keithlinneman/linnemanlabs-static/internal/health"
)

type fakeResetter struct {
	keys []string
	err  error
}

func (f *fakeResetter) Reset(_ context.Context, key string) error {
	f.keys = append(f.keys, key)
	return f.err
}

func serve(h http.Handler, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestNewHandler_Probes(t *testing.T) {
	var gate health.ShutdownGate
	h := NewHandler(&Options{
		Health:    health.Fixed(true, ""),
		Readiness: gate.Probe(),
	})

	if rec := serve(h, http.MethodGet, "/-/healthy"); rec.Code != http.StatusOK {
		t.Fatalf("healthy = %d", rec.Code)
	}
	if rec := serve(h, http.MethodGet, "/-/ready"); rec.Code != http.StatusOK {
		t.Fatalf("ready = %d", rec.Code)
	}

	gate.Set("shutting down")
	rec := serve(h, http.MethodGet, "/-/ready")
	if rec.Code != http.StatusServiceUnavailable || rec.Body.String() != "shutting down\n" {
		t.Fatalf("ready while draining = %d %q", rec.Code, rec.Body.String())
	}
	if rec := serve(h, http.MethodGet, "/-/healthy"); rec.Code != http.StatusOK {
		t.Fatal("liveness must not follow the shutdown gate")
	}
}

func TestNewHandler_Metrics(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("# metrics")) })

	h := NewHandler(&Options{Metrics: metrics})
	if rec := serve(h, http.MethodGet, "/metrics"); rec.Body.String() != "# metrics" {
		t.Fatalf("metrics body = %q", rec.Body.String())
	}

	h = NewHandler(&Options{})
	if rec := serve(h, http.MethodGet, "/metrics"); rec.Code != http.StatusNotFound {
		t.Fatalf("metrics without handler = %d", rec.Code)
	}
}

func TestNewHandler_Pprof(t *testing.T) {
	if rec := serve(NewHandler(&Options{}), http.MethodGet, "/debug/pprof/"); rec.Code != http.StatusNotFound {
		t.Fatalf("pprof disabled = %d", rec.Code)
	}

	h := NewHandler(&Options{EnablePprof: true})
	if rec := serve(h, http.MethodGet, "/debug/pprof/"); rec.Code != http.StatusOK {
		t.Fatalf("pprof index = %d", rec.Code)
	}
	for _, p := range []string{"goroutine?debug=1", "heap?debug=1", "allocs?debug=1", "cmdline"} {
		if rec := serve(h, http.MethodGet, "/debug/pprof/"+p); rec.Code != http.StatusOK {
			t.Fatalf("pprof %s = %d", p, rec.Code)
		}
	}
	if rec := serve(h, http.MethodGet, "/debug/pprof/no-such-profile"); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown profile = %d, want 404", rec.Code)
	}
}

func TestNewHandler_ThrottleReset(t *testing.T) {
	rs := &fakeResetter{}
	var resets int
	h := NewHandler(&Options{Throttle: rs, OnThrottleReset: func() { resets++ }})

	rec := serve(h, http.MethodDelete, "/throttle/203.0.113.9")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(rs.keys) != 1 || rs.keys[0] != "203.0.113.9" {
		t.Fatalf("reset keys = %v", rs.keys)
	}
	if resets != 1 {
		t.Fatalf("OnThrottleReset called %d times", resets)
	}

	if rec := serve(h, http.MethodGet, "/throttle/203.0.113.9"); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET reset = %d", rec.Code)
	}
}

func TestNewHandler_ThrottleResetIPv6(t *testing.T) {
	rs := &fakeResetter{}
	h := NewHandler(&Options{Throttle: rs})

	if rec := serve(h, http.MethodDelete, "/throttle/2001:db8::1"); rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
	if rs.keys[0] != "2001:db8::1" {
		t.Fatalf("key = %q", rs.keys[0])
	}
}

func TestNewHandler_ThrottleResetError(t *testing.T) {
	h := NewHandler(&Options{Throttle: &fakeResetter{err: errors.New("redis down")}})
	if rec := serve(h, http.MethodDelete, "/throttle/10.0.0.1"); rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestNewHandler_ThrottleDisabled(t *testing.T) {
	if rec := serve(NewHandler(&Options{}), http.MethodDelete, "/throttle/10.0.0.1"); rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestNewHandler_RecoverAndRequestID(t *testing.T) {
	var panics int
	h := NewHandler(&Options{
		UseRecoverMW: true,
		OnPanic:      func() { panics++ },
		Health: health.CheckFunc(func(context.Context) error {
			panic("probe exploded")
		}),
	})

	rec := serve(h, http.MethodGet, "/-/healthy")
	if rec.Code != http.StatusInternalServerError || panics != 1 {
		t.Fatalf("status = %d, panics = %d", rec.Code, panics)
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Fatal("request id missing")
	}
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()
	return port
}

func TestStart_ServeAndStop(t *testing.T) {
	port := freePort(t)
	ctx := context.Background()

	stop, err := Start(ctx, &Options{Port: port, Health: health.Fixed(true, "")})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	url := fmt.Sprintf("http://127.0.0.1:%d/-/healthy", port)
	var resp *http.Response
	for i := 0; i < 50; i++ {
		resp, err = http.Get(url)
		if err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || string(body) != "ok\n" {
		t.Fatalf("got %d %q", resp.StatusCode, body)
	}

	if err := stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := stop(ctx); err != nil {
		t.Fatalf("second stop: %v", err)
	}
	http.DefaultClient.CloseIdleConnections()
	if _, err := http.Get(url); err == nil {
		t.Fatal("server still accepting connections after stop")
	}
}

func TestStart_PortInUse(t *testing.T) {
	ln, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	_, err = Start(context.Background(), &Options{Port: ln.Addr().(*net.TCPAddr).Port})
	if err == nil {
		t.Fatal("expected listen error")
	}
}
