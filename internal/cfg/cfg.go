package cfg

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/keithlinneman/linnemanlabs-static/internal/log"
)

const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

type App struct {
	LogJSON           bool
	LogLevel          string
	StacktraceLevel   string
	IncludeErrorLinks bool
	MaxErrorLinks     int

	HTTPPort    int
	AdminPort   int
	TrustedHops int
	DrainDelay  time.Duration

	PublicDir         string
	IndexFile         string
	NotFoundFile      string
	EnableCompression bool

	ContentS3Bucket string
	ContentS3Key    string
	ContentSHA256   string

	RateLimitWindow  time.Duration
	RateLimitMax     int
	RateLimitMessage string
	RateLimitHeaders bool

	SlowDownWindow   time.Duration
	SlowDownAfter    int
	SlowDownDelay    time.Duration
	SlowDownMaxDelay time.Duration

	Store         string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string

	EnablePprof     bool
	EnablePyroscope bool
	EnableTracing   bool
	PyroServer      string
	PyroTenantID    string
	OTLPEndpoint    string
	OTLPInsecure    bool
	TraceSample     float64
}

// Register binds all config fields to the given FlagSet with defaults inline
func Register(fs *flag.FlagSet, c *App) {
	fs.BoolVar(&c.LogJSON, "log-json", true, "JSON logs (true) or logfmt (false)")
	fs.StringVar(&c.LogLevel, "log-level", "info", "debug|info|warn|error")
	fs.StringVar(&c.StacktraceLevel, "stacktrace-level", "error", "debug|info|warn|error")
	fs.BoolVar(&c.IncludeErrorLinks, "include-error-links", true, "Include error links in log messages")
	fs.IntVar(&c.MaxErrorLinks, "max-error-links", 5, "max error chain depth (1..64)")

	fs.IntVar(&c.HTTPPort, "http-port", 3000, "listen TCP port (1..65535)")
	fs.IntVar(&c.AdminPort, "admin-port", 9000, "admin listen TCP port (1..65535)")
	fs.IntVar(&c.TrustedHops, "trusted-hops", 0, "number of reverse proxies whose X-Forwarded-For entries are trusted")
	fs.DurationVar(&c.DrainDelay, "drain-delay", 0, "time to fail readiness before shutting down listeners")

	fs.StringVar(&c.PublicDir, "public-dir", "public", "directory of static files to serve")
	fs.StringVar(&c.IndexFile, "index-file", "index.html", "index document served for / and directories")
	fs.StringVar(&c.NotFoundFile, "not-found-file", "", "file served with 404 for missing paths (optional)")
	fs.BoolVar(&c.EnableCompression, "enable-compression", true, "gzip/deflate compress text responses")

	fs.StringVar(&c.ContentS3Bucket, "content-s3-bucket", "", "s3 bucket to load a .tar.gz content bundle from instead of -public-dir")
	fs.StringVar(&c.ContentS3Key, "content-s3-key", "", "s3 object key of the content bundle")
	fs.StringVar(&c.ContentSHA256, "content-sha256", "", "expected sha256 (hex) of the content bundle (optional)")

	fs.DurationVar(&c.RateLimitWindow, "ratelimit-window", 15*time.Minute, "rate limit window")
	fs.IntVar(&c.RateLimitMax, "ratelimit-max", 5, "requests allowed per client per window, 0 rejects everything")
	fs.StringVar(&c.RateLimitMessage, "ratelimit-message", "Go away you spammer! 😡", "body of rate limited responses")
	fs.BoolVar(&c.RateLimitHeaders, "ratelimit-headers", true, "send X-RateLimit-* headers")

	fs.DurationVar(&c.SlowDownWindow, "slowdown-window", 15*time.Minute, "slow-down window")
	fs.IntVar(&c.SlowDownAfter, "slowdown-after", 1, "requests per client per window served without delay")
	fs.DurationVar(&c.SlowDownDelay, "slowdown-delay", 2*time.Second, "delay added to every request past -slowdown-after")
	fs.DurationVar(&c.SlowDownMaxDelay, "slowdown-max-delay", 0, "cap on the added delay (0 = uncapped)")

	fs.StringVar(&c.Store, "store", StoreMemory, "throttle counter store: memory|redis")
	fs.StringVar(&c.RedisAddr, "redis-addr", "", "redis host:port for -store=redis")
	fs.StringVar(&c.RedisPassword, "redis-password", "", "redis password")
	fs.IntVar(&c.RedisDB, "redis-db", 0, "redis database number")
	fs.StringVar(&c.RedisPrefix, "redis-prefix", "lmstatic", "redis key prefix")

	fs.BoolVar(&c.EnablePprof, "enable-pprof", false, "Enable pprof profiling (on admin port only)")
	fs.BoolVar(&c.EnableTracing, "enable-tracing", false, "Enable OTLP tracing and push to otlp-endpoint")
	fs.BoolVar(&c.EnablePyroscope, "enable-pyroscope", false, "Enable pushing Pyroscope data to server set in -pyro-server")
	fs.StringVar(&c.PyroServer, "pyro-server", "", "pyroscope server url to push to")
	fs.StringVar(&c.PyroTenantID, "pyro-tenant", "", "tenant (x-scope-orgid) to use for pyro-server")
	fs.StringVar(&c.OTLPEndpoint, "otlp-endpoint", "", "OTLP endpoint to push to (gRPC) (host:port)")
	fs.BoolVar(&c.OTLPInsecure, "otlp-insecure", true, "plaintext gRPC to the OTLP endpoint")
	fs.Float64Var(&c.TraceSample, "trace-sample", 0.0, "trace sampling ratio (0..1)")
}

// FillFromEnv sets any flag not explicitly passed on the CLI from
// environment variables. Flag "foo-bar" maps to PREFIX_FOO_BAR.
// Precedence: cli flag > env var > default.
func FillFromEnv(fs *flag.FlagSet, prefix string, logf func(string, ...any)) {
	explicit := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	fs.VisitAll(func(f *flag.Flag) {
		key := EnvKey(prefix, f.Name)
		envVal, envSet := os.LookupEnv(key)
		if !envSet {
			return
		}
		if explicit[f.Name] {
			if logf != nil {
				logf("flag -%s: cli value %q overrides env %s", f.Name, f.Value.String(), key)
			}
			return
		}
		prev := f.Value.String()
		if err := fs.Set(f.Name, envVal); err != nil {
			_ = fs.Set(f.Name, prev)
			if logf != nil {
				logf("flag -%s: ignoring invalid env %s=%q: %v", f.Name, key, envVal, err)
			}
		}
	})
}

// EnvKey maps flag "foo-bar" to PREFIX_FOO_BAR.
func EnvKey(prefix, flagName string) string {
	return prefix + strings.ReplaceAll(strings.ToUpper(flagName), "-", "_")
}

// UsesS3 reports whether content comes from an S3 bundle instead of PublicDir.
func (c App) UsesS3() bool { return c.ContentS3Bucket != "" || c.ContentS3Key != "" }

// Validate checks that config values are within expected ranges and formats.
// Returns an error describing all invalid fields, or nil if all valid.
func Validate(c App) error {
	var errs []error

	// Ports
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.HTTPPort))
	}
	if c.AdminPort < 1 || c.AdminPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid ADMIN_PORT %d (must be 1..65535)", c.AdminPort))
	}
	if c.AdminPort == c.HTTPPort {
		errs = append(errs, fmt.Errorf("ADMIN_PORT and HTTP_PORT must differ (both %d)", c.HTTPPort))
	}
	if c.TrustedHops < 0 {
		errs = append(errs, fmt.Errorf("TRUSTED_HOPS must be >= 0 (got %d)", c.TrustedHops))
	}
	if c.DrainDelay < 0 {
		errs = append(errs, fmt.Errorf("DRAIN_DELAY must be >= 0 (got %s)", c.DrainDelay))
	}

	// Log levels
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("invalid LOG_LEVEL %q: %w", c.LogLevel, err))
	}
	if c.StacktraceLevel != "" {
		if _, err := log.ParseLevel(c.StacktraceLevel); err != nil {
			errs = append(errs, fmt.Errorf("invalid STACKTRACE_LEVEL %q: %w", c.StacktraceLevel, err))
		}
	}
	if c.IncludeErrorLinks && (c.MaxErrorLinks < 1 || c.MaxErrorLinks > 64) {
		errs = append(errs, fmt.Errorf("MAX_ERROR_LINKS must be 1..64 (got %d)", c.MaxErrorLinks))
	}

	// Content
	if c.IndexFile == "" || strings.ContainsAny(c.IndexFile, `/\`) {
		errs = append(errs, fmt.Errorf("INDEX_FILE must be a plain file name (got %q)", c.IndexFile))
	}
	if c.UsesS3() {
		if c.ContentS3Bucket == "" || c.ContentS3Key == "" {
			errs = append(errs, fmt.Errorf("CONTENT_S3_BUCKET and CONTENT_S3_KEY must be set together"))
		}
		if c.ContentSHA256 != "" && !isHexSHA256(c.ContentSHA256) {
			errs = append(errs, fmt.Errorf("CONTENT_SHA256 must be 64 hex characters"))
		}
	} else if c.PublicDir == "" {
		errs = append(errs, fmt.Errorf("PUBLIC_DIR is required when no S3 bundle is configured"))
	}

	// Throttling
	if c.RateLimitWindow <= 0 {
		errs = append(errs, fmt.Errorf("RATELIMIT_WINDOW must be > 0 (got %s)", c.RateLimitWindow))
	}
	if c.RateLimitMax < 0 {
		errs = append(errs, fmt.Errorf("RATELIMIT_MAX must be >= 0 (got %d)", c.RateLimitMax))
	}
	if c.SlowDownWindow <= 0 {
		errs = append(errs, fmt.Errorf("SLOWDOWN_WINDOW must be > 0 (got %s)", c.SlowDownWindow))
	}
	if c.SlowDownAfter < 0 {
		errs = append(errs, fmt.Errorf("SLOWDOWN_AFTER must be >= 0 (got %d)", c.SlowDownAfter))
	}
	if c.SlowDownDelay < 0 || c.SlowDownMaxDelay < 0 {
		errs = append(errs, fmt.Errorf("SLOWDOWN_DELAY and SLOWDOWN_MAX_DELAY must be >= 0"))
	}

	// Store
	switch c.Store {
	case StoreMemory:
	case StoreRedis:
		if c.RedisAddr == "" {
			errs = append(errs, fmt.Errorf("REDIS_ADDR required when STORE=redis"))
		} else if _, _, err := net.SplitHostPort(c.RedisAddr); err != nil {
			errs = append(errs, fmt.Errorf("REDIS_ADDR must be host:port (got %q): %v", c.RedisAddr, err))
		}
		if c.RedisDB < 0 {
			errs = append(errs, fmt.Errorf("REDIS_DB must be >= 0 (got %d)", c.RedisDB))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid STORE %q (must be %s|%s)", c.Store, StoreMemory, StoreRedis))
	}

	// Tracing sample
	if c.TraceSample < 0 || c.TraceSample > 1 {
		errs = append(errs, fmt.Errorf("invalid TRACE_SAMPLE %.3f (must be 0..1)", c.TraceSample))
	}

	// Pyroscope (URL, scheme and tenant)
	if c.EnablePyroscope {
		if c.PyroServer == "" {
			errs = append(errs, fmt.Errorf("PYRO_SERVER required when ENABLE_PYROSCOPE=true"))
		} else if u, err := url.Parse(c.PyroServer); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("PYRO_SERVER must be a URL (got %q)", c.PyroServer))
		}
		if c.PyroTenantID == "" {
			errs = append(errs, fmt.Errorf("PYRO_TENANT required when ENABLE_PYROSCOPE=true"))
		}
	}

	// OTLP tracing (grpc exporter wants host:port, no scheme)
	if c.EnableTracing {
		if c.OTLPEndpoint == "" {
			errs = append(errs, fmt.Errorf("OTLP_ENDPOINT required when ENABLE_TRACING=true"))
		} else if _, _, err := net.SplitHostPort(c.OTLPEndpoint); err != nil {
			errs = append(errs, fmt.Errorf("OTLP_ENDPOINT must be host:port (got %q): %v", c.OTLPEndpoint, err))
		}
	}

	return errors.Join(errs...)
}

func isHexSHA256(s string) bool {
	if len(s) != 64 {
		return false
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}
