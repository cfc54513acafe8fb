package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/keithlinneman/linnemanlabs-static/internal/version"
)

type ServerMetrics struct {
	reg     *prometheus.Registry
	handler http.Handler

	inflight       prometheus.Gauge
	reqTotal       *prometheus.CounterVec
	reqDur         *prometheus.HistogramVec
	respBytes      *prometheus.HistogramVec
	errorsTotal    *prometheus.CounterVec
	httpPanicTotal prometheus.Counter
	buildInfo      *prometheus.GaugeVec

	// throttling
	rateLimitedTotal   prometheus.Counter
	offendersTotal     prometheus.Counter
	delayedTotal       prometheus.Counter
	delaySeconds       prometheus.Histogram
	throttleResetTotal prometheus.Counter
	storeErrorsTotal   *prometheus.CounterVec

	// content
	contentSource          *prometheus.GaugeVec
	contentLoadedTimestamp prometheus.Gauge
	contentBundleInfo      *prometheus.GaugeVec
	bundleLoadDuration     prometheus.Histogram

	profilingActive prometheus.Gauge
}

// New returns a fresh registry with runtime collectors and the server's
// metrics. Labels are limited to method, route pattern, status and stage.
func New() *ServerMetrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &ServerMetrics{
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_inflight_requests",
			Help: "Current number of in-flight HTTP requests",
		}),
		reqTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests by method, route, and status",
		}, []string{"method", "route", "status"}),
		reqDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Request latency by method and route, including throttling delay",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"method", "route"}),
		respBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "Response size by method and route",
			Buckets: prometheus.ExponentialBuckets(256, 4, 10),
		}, []string{"method", "route"}),
		errorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "Total 5xx HTTP server errors by method and route",
		}, []string{"method", "route"}),
		httpPanicTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "http_panic_total",
			Help: "Total number of recovered handler panics",
		}),
		buildInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "build_info",
			Help: "Build metadata (value is always 1)",
		}, []string{"app", "component", "version", "commit", "commit_date", "build_id", "build_date", "vcs_dirty", "go_version"}),

		rateLimitedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "http_requests_rate_limited_total",
			Help: "Total requests rejected by the rate limiter",
		}),
		offendersTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "http_rate_limit_offenders_total",
			Help: "Total client windows in which the rate limit was exceeded",
		}),
		delayedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "http_requests_delayed_total",
			Help: "Total requests delayed by the speed limiter",
		}),
		delaySeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "http_request_delay_seconds",
			Help:    "Delay applied by the speed limiter",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}),
		throttleResetTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "throttle_resets_total",
			Help: "Total client keys reset through the ops endpoint",
		}),
		storeErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "throttle_store_errors_total",
			Help: "Counter store failures by stage, requests pass unthrottled",
		}, []string{"stage"}),

		contentSource: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "content_source_info",
			Help: "Current content source (label carries value, gauge is always 1)",
		}, []string{"source"}),
		contentLoadedTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "content_loaded_timestamp_seconds",
			Help: "Unix timestamp of when the current content was loaded",
		}),
		contentBundleInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "content_bundle_info",
			Help: "Currently active content bundle (label carries identity, value is always 1)",
		}, []string{"sha256"}),
		bundleLoadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "content_bundle_load_duration_seconds",
			Help:    "Time to download, verify, and extract a content bundle",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		profilingActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "profiling_active",
			Help: "Whether continuous profiling is active (1) or disabled/failed (0)",
		}),
	}
	reg.MustRegister(
		m.inflight,
		m.reqTotal,
		m.reqDur,
		m.respBytes,
		m.errorsTotal,
		m.httpPanicTotal,
		m.buildInfo,
		m.rateLimitedTotal,
		m.offendersTotal,
		m.delayedTotal,
		m.delaySeconds,
		m.throttleResetTotal,
		m.storeErrorsTotal,
		m.contentSource,
		m.contentLoadedTimestamp,
		m.contentBundleInfo,
		m.bundleLoadDuration,
		m.profilingActive,
	)

	m.handler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
	m.reg = reg
	return m
}

func (m *ServerMetrics) Handler() http.Handler { return m.handler }

// Registry exposes the registry for tests and extra collectors.
func (m *ServerMetrics) Registry() *prometheus.Registry { return m.reg }

func (m *ServerMetrics) IncHttpPanic() { m.httpPanicTotal.Inc() }

// SetBuildInfoFromVersion is called once at startup.
func (m *ServerMetrics) SetBuildInfoFromVersion(app, component string, vi version.Info) {
	dirty := "unknown"
	if vi.VCSDirty != nil {
		dirty = strconv.FormatBool(*vi.VCSDirty)
	}
	m.buildInfo.With(prometheus.Labels{
		"app":         app,
		"component":   component,
		"version":     vi.Version,
		"commit":      vi.Commit,
		"commit_date": vi.CommitDate,
		"build_id":    vi.BuildId,
		"build_date":  vi.BuildDate,
		"go_version":  vi.GoVersion,
		"vcs_dirty":   dirty,
	}).Set(1)
}

// IncRateLimited counts one rejected request.
func (m *ServerMetrics) IncRateLimited() { m.rateLimitedTotal.Inc() }

// IncRateLimitOffender counts a client crossing the limit in a new window.
func (m *ServerMetrics) IncRateLimitOffender() { m.offendersTotal.Inc() }

// ObserveDelay counts one delayed request and records its delay.
func (m *ServerMetrics) ObserveDelay(d time.Duration) {
	m.delayedTotal.Inc()
	m.delaySeconds.Observe(d.Seconds())
}

func (m *ServerMetrics) IncThrottleReset() { m.throttleResetTotal.Inc() }

// IncStoreError counts a failed counter store call for stage
// ("slowdown" or "ratelimit").
func (m *ServerMetrics) IncStoreError(stage string) {
	m.storeErrorsTotal.WithLabelValues(stage).Inc()
}

// RegisterTrackedClients exports the number of clients a stage currently
// holds a window for. Only in-process stores can report it.
func (m *ServerMetrics) RegisterTrackedClients(stage string, count func() int) error {
	return m.reg.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name:        "throttle_tracked_clients",
		Help:        "Clients with an open throttling window",
		ConstLabels: prometheus.Labels{"stage": stage},
	}, func() float64 { return float64(count()) }))
}

func (m *ServerMetrics) SetContentSource(source string) {
	m.contentSource.Reset()
	m.contentSource.WithLabelValues(source).Set(1)
}

func (m *ServerMetrics) SetContentLoadedTimestamp(t time.Time) {
	m.contentLoadedTimestamp.Set(float64(t.Unix()))
}

func (m *ServerMetrics) SetContentBundle(sha256 string) {
	m.contentBundleInfo.Reset()
	if sha256 != "" {
		m.contentBundleInfo.WithLabelValues(sha256).Set(1)
	}
}

func (m *ServerMetrics) ObserveBundleLoadDuration(d time.Duration) {
	m.bundleLoadDuration.Observe(d.Seconds())
}

func (m *ServerMetrics) SetProfilingActive(active bool) {
	if active {
		m.profilingActive.Set(1)
	} else {
		m.profilingActive.Set(0)
	}
}
