package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/keithlinneman/linnemanlabs-static/internal/cfg"
	"github.com/keithlinneman/linnemanlabs-static/internal/content"
	"github.com/keithlinneman/linnemanlabs-static/internal/health"
	"github.com/keithlinneman/linnemanlabs-static/internal/httpmw"
	"github.com/keithlinneman/linnemanlabs-static/internal/httpserver"
	"github.com/keithlinneman/linnemanlabs-static/internal/log"
	"github.com/keithlinneman/linnemanlabs-static/internal/metrics"
	"github.com/keithlinneman/linnemanlabs-static/internal/opshttp"
	"github.com/keithlinneman/linnemanlabs-static/internal/otelx"
	"github.com/keithlinneman/linnemanlabs-static/internal/prof"
	"github.com/keithlinneman/linnemanlabs-static/internal/ratelimit"
	"github.com/keithlinneman/linnemanlabs-static/internal/sitehandler"
	"github.com/keithlinneman/linnemanlabs-static/internal/sitehttp"
	v "github.com/keithlinneman/linnemanlabs-static/internal/version"
	"github.com/keithlinneman/linnemanlabs-static/internal/webassets"
)

const envPrefix = "LMSTATIC_"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	vi := v.Get()

	var conf cfg.App
	var showVersion bool

	// Parse config from flags and env
	cfg.Register(flag.CommandLine, &conf)
	flag.BoolVar(&showVersion, "V", false, "Print version+build information and exit")
	flag.Parse()

	if showVersion {
		fmt.Println(vi.String())
		os.Exit(0)
	}

	cfg.FillFromEnv(flag.CommandLine, envPrefix, func(format string, args ...any) {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	})

	if err := cfg.Validate(conf); err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}

	// Setup logging, levels were checked by Validate
	lvl, _ := log.ParseLevel(conf.LogLevel)
	stackLvl, _ := log.ParseLevel(conf.StacktraceLevel)
	lg, err := log.New(log.Options{
		App:               v.AppName,
		Component:         v.Component,
		Version:           vi.Version,
		Level:             lvl,
		StacktraceLevel:   stackLvl,
		JsonFormat:        conf.LogJSON,
		MaxErrorLinks:     conf.MaxErrorLinks,
		IncludeErrorLinks: conf.IncludeErrorLinks,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger init error:", err)
		os.Exit(1)
	}
	defer func() { _ = lg.Sync() }()
	L := lg
	ctx = log.WithContext(ctx, L)

	L.Info(ctx, "initializing application",
		"commit", vi.Commit,
		"build_date", vi.BuildDate,
		"go_version", vi.GoVersion,
		"http_port", conf.HTTPPort,
		"admin_port", conf.AdminPort,
		"public_dir", conf.PublicDir,
		"content_s3_bucket", conf.ContentS3Bucket,
		"content_s3_key", conf.ContentS3Key,
		"enable_compression", conf.EnableCompression,
		"store", conf.Store,
		"ratelimit_window", conf.RateLimitWindow,
		"ratelimit_max", conf.RateLimitMax,
		"slowdown_window", conf.SlowDownWindow,
		"slowdown_after", conf.SlowDownAfter,
		"slowdown_delay", conf.SlowDownDelay,
		"trusted_hops", conf.TrustedHops,
		"enable_pprof", conf.EnablePprof,
		"enable_pyroscope", conf.EnablePyroscope,
		"enable_tracing", conf.EnableTracing,
	)

	m := metrics.New()
	m.SetBuildInfoFromVersion(v.AppName, v.Component, vi)

	// Setup pyroscope profiling
	stopProf, err := prof.Start(ctx, prof.Options{
		Enabled:       conf.EnablePyroscope,
		AppName:       v.AppName + "." + v.Component,
		ServerAddress: conf.PyroServer,
		TenantID:      conf.PyroTenantID,
		Tags: map[string]string{
			"version": vi.Version,
			"commit":  vi.Commit,
		},
	})
	if err != nil {
		L.Error(ctx, err, "pyroscope start failed", "pyro_server", conf.PyroServer)
	}
	m.SetProfilingActive(conf.EnablePyroscope && err == nil)
	defer stopProf()

	shutdownOTEL, err := otelx.Init(ctx, otelx.Options{
		Enabled:   conf.EnableTracing,
		Endpoint:  conf.OTLPEndpoint,
		Insecure:  conf.OTLPInsecure,
		Sample:    conf.TraceSample,
		Service:   v.AppName,
		Component: v.Component,
		Version:   vi.Version,
	})
	if err != nil {
		L.Error(ctx, err, "otel init failed, continuing without trace export")
		shutdownOTEL = func(context.Context) error { return nil }
	}

	// Content: one snapshot from the public directory or an S3 bundle
	contentMgr := content.NewManager()
	if err := loadContent(ctx, L, conf, contentMgr, m); err != nil {
		L.Error(ctx, err, "failed to load site content")
		os.Exit(1)
	}

	site, err := sitehandler.New(&sitehandler.Options{
		Logger:          L,
		Content:         contentMgr,
		IndexFile:       conf.IndexFile,
		NotFoundFile:    conf.NotFoundFile,
		FallbackFS:      webassets.FallbackFS(),
		UnavailableFile: webassets.UnavailableFile,
	})
	if err != nil {
		L.Error(ctx, err, "failed to create site handler")
		os.Exit(1)
	}

	// Throttling stages
	throttle, err := newThrottle(ctx, L, conf, m)
	if err != nil {
		L.Error(ctx, err, "failed to set up throttling")
		os.Exit(1)
	}
	defer throttle.Close()

	var gate health.ShutdownGate
	readiness := health.All(
		gate.Probe(),
		health.Named("content", health.ErrFunc(contentMgr.ReadyErr)),
	)

	siteHTTPStop, err := httpserver.Start(ctx, &httpserver.Options{
		Logger:            L,
		Port:              conf.HTTPPort,
		ClientIPOpts:      httpmw.ClientIPOptions{TrustedHops: conf.TrustedHops},
		UseRecoverMW:      true,
		OnPanic:           m.IncHttpPanic,
		MetricsMW:         m.Middleware,
		ContentInfo:       contentMgr,
		AccessLog:         httpmw.DefaultAccessLogOptions(),
		EnableCompression: conf.EnableCompression,
		SpeedLimitMW:      throttle.speed.Middleware,
		RateLimitMW:       throttle.limiter.Middleware,
		Routes:            sitehttp.New(site).RegisterRoutes,
	}, throttle.maxDelay())
	if err != nil {
		L.Error(ctx, err, "failed to start site http listener")
		os.Exit(1)
	}
	defer func() { _ = siteHTTPStop(context.Background()) }()

	// admin listener: metrics, probes, pprof and throttle resets, never exposed publicly
	opsHTTPStop, err := opshttp.Start(ctx, &opshttp.Options{
		Port:            conf.AdminPort,
		Logger:          L,
		Metrics:         m.Handler(),
		EnablePprof:     conf.EnablePprof,
		Health:          health.Fixed(true, ""),
		Readiness:       readiness,
		Throttle:        ratelimit.Stages{throttle.speed, throttle.limiter},
		OnThrottleReset: m.IncThrottleReset,
		UseRecoverMW:    true,
		OnPanic:         m.IncHttpPanic,
	})
	if err != nil {
		L.Error(ctx, err, "failed to start ops http listener")
		os.Exit(1)
	}
	defer func() { _ = opsHTTPStop(context.Background()) }()

	L.Info(ctx, "server is running", "port", conf.HTTPPort)

	if err := notifySystemd(); err != nil {
		L.Debug(ctx, "systemd notify skipped", "reason", err.Error())
	}

	<-ctx.Done()
	stop()
	L.Info(context.Background(), "shutdown signal received")

	// fail readiness so load balancers stop sending new requests
	gate.Set("draining")
	if conf.DrainDelay > 0 {
		L.Info(context.Background(), "draining before shutdown", "drain_delay", conf.DrainDelay)
		forceCh := make(chan os.Signal, 1)
		signal.Notify(forceCh, os.Interrupt, syscall.SIGTERM)
		select {
		case <-time.After(conf.DrainDelay):
			L.Info(context.Background(), "drain period complete")
		case <-forceCh:
			L.Warn(context.Background(), "second signal received, skipping drain")
		}
		signal.Stop(forceCh)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := siteHTTPStop(shutdownCtx); err != nil {
		L.Error(context.Background(), err, "site http server shutdown")
	}
	if err := opsHTTPStop(shutdownCtx); err != nil {
		L.Error(context.Background(), err, "ops http server shutdown")
	}
	if err := shutdownOTEL(shutdownCtx); err != nil {
		L.Error(context.Background(), err, "otel shutdown")
	}

	L.Info(context.Background(), "shutdown complete")
}

func notifySystemd() error {
	// systemd sets NOTIFY_SOCKET when the unit is Type=notify
	addr := os.Getenv("NOTIFY_SOCKET")
	if addr == "" {
		return fmt.Errorf("NOTIFY_SOCKET not set")
	}
	conn, err := net.Dial("unixgram", addr)
	if err != nil {
		return fmt.Errorf("systemd notify: %w", err)
	}
	defer conn.Close()
	if _, err := conn.Write([]byte("READY=1")); err != nil {
		return fmt.Errorf("systemd notify: %w", err)
	}
	return nil
}
