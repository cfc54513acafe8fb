package ratelimit

import (
	"context"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/keithlinneman/linnemanlabs-static/internal/log"
)

// DefaultMessage is the body sent to rejected clients.
const DefaultMessage = "Go away you spammer! 😡"

// Limiter rejects requests once a client has made more than max requests
// inside its current window.
type Limiter struct {
	store   Store
	max     int
	message string
	status  int
	headers bool
	keyFn   KeyFunc
	now     func() time.Time

	// OnFirstDenied is called once per client per window, on the request that first goes over the limit
	OnFirstDenied func(key string)

	// OnDenied is called on every rejected request, used for incrementing prometheus counter
	OnDenied func(key string)

	// OnStoreError is called on every failed store call, the request is let through
	OnStoreError func(err error)

	// store errors are usually an outage, log one per minute rather than one per request
	errLog rate.Sometimes
}

type Option func(*Limiter)

// WithMax sets how many requests a client may make per window. 0 rejects everything.
func WithMax(n int) Option {
	return func(l *Limiter) {
		if n >= 0 {
			l.max = n
		}
	}
}

// WithMessage sets the plain text body of rejections.
func WithMessage(msg string) Option {
	return func(l *Limiter) { l.message = msg }
}

// WithStatusCode sets the status of rejections, default 429.
func WithStatusCode(code int) Option {
	return func(l *Limiter) {
		if code >= 400 && code <= 599 {
			l.status = code
		}
	}
}

// WithHeaders toggles the X-RateLimit-* headers on every response.
func WithHeaders(enabled bool) Option {
	return func(l *Limiter) { l.headers = enabled }
}

// WithKeyFunc overrides how requests are mapped to clients.
func WithKeyFunc(fn KeyFunc) Option {
	return func(l *Limiter) {
		if fn != nil {
			l.keyFn = fn
		}
	}
}

// WithClock overrides the clock used for Retry-After, should match the store's clock.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
	}
}

// WithOnFirstDenied sets a callback for the first denial per client per window, used for logging.
// Separate from OnDenied so we log once but still count every denial.
func WithOnFirstDenied(fn func(key string)) Option {
	return func(l *Limiter) { l.OnFirstDenied = fn }
}

// WithOnDenied sets a callback for every denied request.
func WithOnDenied(fn func(key string)) Option {
	return func(l *Limiter) { l.OnDenied = fn }
}

// WithOnStoreError sets a callback for every failed store call.
func WithOnStoreError(fn func(err error)) Option {
	return func(l *Limiter) { l.OnStoreError = fn }
}

// New creates a Limiter counting in store. Defaults: 5 requests per window,
// DefaultMessage, 429, headers on.
func New(store Store, opts ...Option) *Limiter {
	l := &Limiter{
		store:   store,
		max:     5,
		message: DefaultMessage,
		status:  http.StatusTooManyRequests,
		headers: true,
		keyFn:   ClientKey,
		now:     time.Now,
		errLog:  rate.Sometimes{First: 1, Interval: time.Minute},
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Max returns the number of requests allowed per window.
func (l *Limiter) Max() int { return l.max }

// allow counts a request for key and reports whether it may proceed.
// Store errors let the request through and are returned for the caller to report.
func (l *Limiter) allow(ctx context.Context, key string) (Hit, bool, error) {
	hit, err := l.store.Increment(ctx, key)
	if err != nil {
		return Hit{}, true, err
	}
	if hit.Count <= l.max {
		return hit, true, nil
	}

	if hit.Count == l.max+1 && l.OnFirstDenied != nil {
		l.OnFirstDenied(key)
	}
	if l.OnDenied != nil {
		l.OnDenied(key)
	}
	return hit, false, nil
}

// Reset clears the window held for key.
func (l *Limiter) Reset(ctx context.Context, key string) error {
	return l.store.Reset(ctx, key)
}

// Middleware returns middleware that rejects requests over the per-client limit
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		key := l.keyFn(r)

		hit, ok, err := l.allow(ctx, key)
		if err != nil {
			storeFailed(ctx, &l.errLog, l.OnStoreError, err, "ratelimit")
			next.ServeHTTP(w, r)
			return
		}

		if l.headers {
			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(l.max))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(max(l.max-hit.Count, 0)))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(ceilUnix(hit.ResetAt), 10))
		}

		if !ok {
			w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(hit.ResetAt, l.now())))
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.WriteHeader(l.status)
			_, _ = io.WriteString(w, l.message)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// storeFailed reports a failed store call. The hook runs every time, the log line at most once per errLog interval.
func storeFailed(ctx context.Context, errLog *rate.Sometimes, hook func(error), err error, stage string) {
	if hook != nil {
		hook(err)
	}
	errLog.Do(func() {
		log.FromContext(ctx).Error(ctx, err, "throttle store unavailable, letting requests through", "stage", stage)
	})
}

// ceilUnix rounds t up to whole unix seconds
func ceilUnix(t time.Time) int64 {
	sec := t.Unix()
	if t.Nanosecond() > 0 {
		sec++
	}
	return sec
}

// retryAfterSeconds is the whole number of seconds until reset, never negative
func retryAfterSeconds(reset, now time.Time) int {
	d := reset.Sub(now)
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}
