package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/keithlinneman/linnemanlabs-static/internal/httpmw"
	"github.com/keithlinneman/linnemanlabs-static/internal/log"
)

type Options struct {
	Logger       log.Logger
	Port         int
	ClientIPOpts httpmw.ClientIPOptions

	UseRecoverMW bool
	OnPanic      func()

	MetricsMW   func(http.Handler) http.Handler
	ContentInfo httpmw.ContentInfo // X-Content-Version and X-Content-Hash headers
	AccessLog   httpmw.AccessLogOptions

	// EnableCompression gzip/deflate-encodes text responses
	EnableCompression bool

	// Throttling stages, speed limit runs before rate limit
	SpeedLimitMW func(http.Handler) http.Handler
	RateLimitMW  func(http.Handler) http.Handler

	// Routes registers the site handlers on the router
	Routes func(r chi.Router)
}
