package ratelimit

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// SpeedLimiterOptions configures a SpeedLimiter.
type SpeedLimiterOptions struct {
	// DelayAfter is how many requests per window pass without delay
	DelayAfter int

	// Delay is added to every request past DelayAfter
	Delay time.Duration

	// MaxDelay caps Delay when > 0
	MaxDelay time.Duration

	// KeyFunc maps requests to clients, default ClientKey
	KeyFunc KeyFunc

	// OnDelayed is called for every delayed request before it waits
	OnDelayed func(key string, d time.Duration)

	// OnStoreError is called on every failed store call, the request passes undelayed
	OnStoreError func(err error)
}

// SpeedLimiter slows clients down instead of rejecting them: once a client
// has made more than DelayAfter requests in its window, each further request
// is held for Delay before being passed on.
type SpeedLimiter struct {
	store Store
	opts  SpeedLimiterOptions

	// wait blocks for d or until ctx is done, replaced in tests
	wait func(ctx context.Context, d time.Duration) error

	errLog rate.Sometimes
}

// NewSpeedLimiter returns a speed-limit stage counting hits in store.
func NewSpeedLimiter(store Store, opts SpeedLimiterOptions) *SpeedLimiter {
	if opts.DelayAfter < 0 {
		opts.DelayAfter = 0
	}
	if opts.Delay < 0 {
		opts.Delay = 0
	}
	if opts.KeyFunc == nil {
		opts.KeyFunc = ClientKey
	}
	return &SpeedLimiter{
		store:  store,
		opts:   opts,
		wait:   sleepCtx,
		errLog: rate.Sometimes{First: 1, Interval: time.Minute},
	}
}

// DefaultSpeedLimiterOptions returns one free request per window and 2s of delay after that.
func DefaultSpeedLimiterOptions() SpeedLimiterOptions {
	return SpeedLimiterOptions{
		DelayAfter: 1,
		Delay:      2 * time.Second,
	}
}

// delayFor returns how long the request numbered count should be held
func (s *SpeedLimiter) delayFor(count int) time.Duration {
	if count <= s.opts.DelayAfter {
		return 0
	}
	d := s.opts.Delay
	if s.opts.MaxDelay > 0 && d > s.opts.MaxDelay {
		d = s.opts.MaxDelay
	}
	return d
}

// Reset clears the window held for key.
func (s *SpeedLimiter) Reset(ctx context.Context, key string) error {
	return s.store.Reset(ctx, key)
}

// Middleware returns middleware that delays requests over the per-client threshold.
// Requests whose client goes away while waiting are dropped.
func (s *SpeedLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		key := s.opts.KeyFunc(r)

		hit, err := s.store.Increment(ctx, key)
		if err != nil {
			storeFailed(ctx, &s.errLog, s.opts.OnStoreError, err, "slowdown")
			next.ServeHTTP(w, r)
			return
		}

		if d := s.delayFor(hit.Count); d > 0 {
			if s.opts.OnDelayed != nil {
				s.opts.OnDelayed(key, d)
			}
			if err := s.wait(ctx, d); err != nil {
				// client disconnected or server shutting down, nobody to answer
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
