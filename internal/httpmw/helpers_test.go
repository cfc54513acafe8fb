package httpmw

import (
	"context"
	"net/http"
	"sync"

	"github.com/keithlinneman/linnemanlabs-static/internal/log"
)

type logEntry struct {
	level string
	msg   string
	err   error
	kv    []any
}

// recLogger records every call. With() returns a child that shares the same
// sink and carries the accumulated fields.
type recLogger struct {
	sink   *logSink
	fields []any
}

type logSink struct {
	mu      sync.Mutex
	entries []logEntry
}

func newRecLogger() *recLogger { return &recLogger{sink: &logSink{}} }

func (l *recLogger) With(kv ...any) log.Logger {
	f := append(append([]any(nil), l.fields...), kv...)
	return &recLogger{sink: l.sink, fields: f}
}

func (l *recLogger) add(level string, err error, msg string, kv []any) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	all := append(append([]any(nil), l.fields...), kv...)
	l.sink.entries = append(l.sink.entries, logEntry{level: level, msg: msg, err: err, kv: all})
}

func (l *recLogger) Debug(_ context.Context, msg string, kv ...any) { l.add("debug", nil, msg, kv) }
func (l *recLogger) Info(_ context.Context, msg string, kv ...any)  { l.add("info", nil, msg, kv) }
func (l *recLogger) Warn(_ context.Context, msg string, kv ...any)  { l.add("warn", nil, msg, kv) }
func (l *recLogger) Error(_ context.Context, err error, msg string, kv ...any) {
	l.add("error", err, msg, kv)
}
func (l *recLogger) Sync() error { return nil }

func (l *recLogger) entries() []logEntry {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	return append([]logEntry(nil), l.sink.entries...)
}

// field returns the value logged for key, searching the flat kv list.
func (e logEntry) field(key string) (any, bool) {
	for i := 0; i+1 < len(e.kv); i += 2 {
		if k, _ := e.kv[i].(string); k == key {
			return e.kv[i+1], true
		}
	}
	return nil, false
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
})
