package httpmw

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRecover_NoPanic(t *testing.T) {
	l := newRecLogger()
	rec := httptest.NewRecorder()
	Recover(l, nil)(okHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(l.entries()) != 0 {
		t.Fatal("nothing should be logged")
	}
}

func TestRecover_Panics(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name  string
		value any
		isErr bool
	}{
		{name: "string", value: "something broke"},
		{name: "error", value: boom, isErr: true},
		{name: "int", value: 42},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newRecLogger()
			var hooked int
			h := Recover(l, func() { hooked++ })(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				panic(tt.value)
			}))

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/upload", nil))

			if rec.Code != http.StatusInternalServerError {
				t.Fatalf("status = %d, want 500", rec.Code)
			}
			if hooked != 1 {
				t.Fatalf("onPanic called %d times", hooked)
			}
			entries := l.entries()
			if len(entries) != 1 || entries[0].msg != "httpserver panic recovered" {
				t.Fatalf("entries = %+v", entries)
			}
			e := entries[0]
			if e.err == nil {
				t.Fatal("error not logged")
			}
			if tt.isErr && !errors.Is(e.err, boom) {
				t.Fatalf("logged error %v does not wrap the panic value", e.err)
			}
			if v, _ := e.field("url.path"); v != "/upload" {
				t.Fatalf("url.path = %v", v)
			}
			if v, _ := e.field("http.request.method"); v != http.MethodPost {
				t.Fatalf("method = %v", v)
			}
		})
	}
}

func TestRecover_AbortHandlerRepanics(t *testing.T) {
	h := Recover(newRecLogger(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	defer func() {
		if v := recover(); v != http.ErrAbortHandler {
			t.Fatalf("recovered %v, want ErrAbortHandler", v)
		}
	}()
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	t.Fatal("expected re-panic")
}

func TestRecover_NilLogger(t *testing.T) {
	h := Recover(nil, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
}
