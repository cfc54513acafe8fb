package ratelimit

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/keithlinneman/linnemanlabs-static/internal/httpmw"
)

// Hit is the state of a client's window after counting one request.
type Hit struct {
	// Count is the number of requests seen in the current window, including this one
	Count int
	// ResetAt is when the current window ends and the count drops back to zero
	ResetAt time.Time
}

// Store counts requests per client key in fixed windows.
// Implementations must be safe for concurrent use.
type Store interface {
	// Increment counts one request for key and returns the updated window.
	// A window starts on the first request after the previous one expired.
	Increment(ctx context.Context, key string) (Hit, error)

	// Reset drops any window held for key.
	Reset(ctx context.Context, key string) error
}

// KeyFunc maps a request to the client key it is counted under.
type KeyFunc func(r *http.Request) string

// ClientKey is the default KeyFunc. It uses the client IP resolved by
// httpmw.ClientIP, falling back to the connection peer when that middleware
// did not run.
func ClientKey(r *http.Request) string {
	if ip := httpmw.ClientIPFromContext(r.Context()); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}

// Resetter is implemented by Limiter, SpeedLimiter and every Store.
type Resetter interface {
	Reset(ctx context.Context, key string) error
}

// Stages resets a client key across several throttling stages. Every stage
// is attempted, errors are joined.
type Stages []Resetter

func (s Stages) Reset(ctx context.Context, key string) error {
	var errs []error
	for _, r := range s {
		if r == nil {
			continue
		}
		if err := r.Reset(ctx, key); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
