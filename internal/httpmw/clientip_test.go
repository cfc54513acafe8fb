package httpmw

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestResolveClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		hops       int
		want       string
		xffKept    bool
	}{
		{name: "public peer no proxy", remoteAddr: "203.0.113.7:5555", want: "203.0.113.7"},
		{name: "public peer ignores xff", remoteAddr: "203.0.113.7:5555", xff: "198.51.100.1", hops: 1, want: "203.0.113.7"},
		{name: "private peer zero hops ignores xff", remoteAddr: "10.0.0.5:80", xff: "198.51.100.1", want: "10.0.0.5"},
		{name: "single proxy rightmost", remoteAddr: "10.0.0.5:80", xff: "1.1.1.1, 198.51.100.1", hops: 1, want: "198.51.100.1", xffKept: true},
		{name: "two proxies", remoteAddr: "10.0.0.5:80", xff: "198.51.100.1, 172.16.0.9", hops: 2, want: "198.51.100.1", xffKept: true},
		{name: "loopback proxy", remoteAddr: "127.0.0.1:80", xff: "198.51.100.1", hops: 1, want: "198.51.100.1", xffKept: true},
		{name: "too few entries", remoteAddr: "10.0.0.5:80", xff: "198.51.100.1", hops: 2, want: "10.0.0.5"},
		{name: "garbage entry", remoteAddr: "10.0.0.5:80", xff: "not-an-ip", hops: 1, want: "10.0.0.5", xffKept: true},
		{name: "private peer no xff", remoteAddr: "10.0.0.5:80", hops: 1, want: "10.0.0.5"},
		{name: "ipv6 peer", remoteAddr: "[2001:db8::1]:443", want: "2001:db8::1"},
		{name: "no port", remoteAddr: "203.0.113.7", want: "203.0.113.7"},
		{name: "not an ip", remoteAddr: "example:80", want: "0.0.0.0"},
		{name: "empty", remoteAddr: "", want: "0.0.0.0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}

			if got := resolveClientIP(r, tt.hops); got != tt.want {
				t.Fatalf("resolveClientIP = %q, want %q", got, tt.want)
			}
			if tt.xff != "" {
				if kept := r.Header.Get("X-Forwarded-For") != ""; kept != tt.xffKept {
					t.Fatalf("X-Forwarded-For kept = %v, want %v", kept, tt.xffKept)
				}
			}
		})
	}
}

func TestClientIPWithOptions_StoresInContext(t *testing.T) {
	var got string
	h := ClientIPWithOptions(ClientIPOptions{TrustedHops: 1})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = ClientIPFromContext(r.Context())
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.1.2.3:4000"
	r.Header.Set("X-Forwarded-For", "198.51.100.20")
	h.ServeHTTP(httptest.NewRecorder(), r)

	if got != "198.51.100.20" {
		t.Fatalf("client ip = %q", got)
	}
}

func TestClientIP_DefaultDistrustsHeaders(t *testing.T) {
	var got, proto string
	h := ClientIP(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = ClientIPFromContext(r.Context())
		proto = r.Header.Get("X-Forwarded-Proto")
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.1.2.3:4000"
	r.Header.Set("X-Forwarded-For", "198.51.100.20")
	r.Header.Set("X-Forwarded-Proto", "https")
	h.ServeHTTP(httptest.NewRecorder(), r)

	if got != "10.1.2.3" {
		t.Fatalf("client ip = %q, want peer", got)
	}
	if proto != "" {
		t.Fatal("X-Forwarded-Proto should be stripped")
	}
}

func TestWithClientIP_Empty(t *testing.T) {
	ctx := WithClientIP(httptest.NewRequest(http.MethodGet, "/", nil).Context(), "")
	if ClientIPFromContext(ctx) != "" {
		t.Fatal("empty ip should not be stored")
	}
}
