package opshttp

import (
	"context"
	"net/http"

	"github.com/keithlinneman/linnemanlabs-static/internal/health"
	"github.com/keithlinneman/linnemanlabs-static/internal/log"
)

// ThrottleResetter clears the throttling windows held for a client key.
type ThrottleResetter interface {
	Reset(ctx context.Context, key string) error
}

type Options struct {
	Port   int
	Logger log.Logger

	Metrics     http.Handler
	EnablePprof bool
	Health      health.Probe
	Readiness   health.Probe

	// Throttle enables DELETE /throttle/{key}
	Throttle        ThrottleResetter
	OnThrottleReset func()

	UseRecoverMW bool
	OnPanic      func()
}
