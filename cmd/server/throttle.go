package main

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/keithlinneman/linnemanlabs-static/internal/cfg"
	"github.com/keithlinneman/linnemanlabs-static/internal/log"
	"github.com/keithlinneman/linnemanlabs-static/internal/metrics"
	"github.com/keithlinneman/linnemanlabs-static/internal/ratelimit"
	"github.com/keithlinneman/linnemanlabs-static/internal/xerrors"
)

const (
	stageSlowDown  = "slowdown"
	stageRateLimit = "ratelimit"
)

// throttle holds both stages and the store plumbing behind them.
type throttle struct {
	speed   *ratelimit.SpeedLimiter
	limiter *ratelimit.Limiter
	conf    cfg.App
	rdb     *redis.Client
}

func newThrottle(ctx context.Context, L log.Logger, conf cfg.App, m *metrics.ServerMetrics) (*throttle, error) {
	t := &throttle{conf: conf}

	var speedStore, rateStore ratelimit.Store
	switch conf.Store {
	case cfg.StoreRedis:
		t.rdb = redis.NewClient(&redis.Options{
			Addr:         conf.RedisAddr,
			Password:     conf.RedisPassword,
			DB:           conf.RedisDB,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  500 * time.Millisecond,
			WriteTimeout: 500 * time.Millisecond,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := t.rdb.Ping(pingCtx).Err(); err != nil {
			// stores fail open, so an unreachable redis is logged rather than fatal
			L.Warn(ctx, "redis unreachable at startup, throttling fails open until it recovers",
				"redis_addr", conf.RedisAddr, "error", err.Error())
		}
		speedStore = ratelimit.NewRedisStore(t.rdb, ratelimit.RedisStoreOptions{
			Window: conf.SlowDownWindow,
			Prefix: conf.RedisPrefix + ":" + stageSlowDown,
		})
		rateStore = ratelimit.NewRedisStore(t.rdb, ratelimit.RedisStoreOptions{
			Window: conf.RateLimitWindow,
			Prefix: conf.RedisPrefix + ":" + stageRateLimit,
		})
	default:
		ms := ratelimit.NewMemoryStore(ctx, ratelimit.MemoryStoreOptions{Window: conf.SlowDownWindow})
		mr := ratelimit.NewMemoryStore(ctx, ratelimit.MemoryStoreOptions{Window: conf.RateLimitWindow})
		if err := m.RegisterTrackedClients(stageSlowDown, ms.Len); err != nil {
			return nil, xerrors.Wrap(err, "register slowdown gauge")
		}
		if err := m.RegisterTrackedClients(stageRateLimit, mr.Len); err != nil {
			return nil, xerrors.Wrap(err, "register ratelimit gauge")
		}
		speedStore, rateStore = ms, mr
	}

	t.speed = ratelimit.NewSpeedLimiter(speedStore, ratelimit.SpeedLimiterOptions{
		DelayAfter: conf.SlowDownAfter,
		Delay:      conf.SlowDownDelay,
		MaxDelay:   conf.SlowDownMaxDelay,
		OnDelayed: func(_ string, d time.Duration) {
			m.ObserveDelay(d)
		},
		OnStoreError: func(error) { m.IncStoreError(stageSlowDown) },
	})

	t.limiter = ratelimit.New(rateStore,
		ratelimit.WithMax(conf.RateLimitMax),
		ratelimit.WithMessage(conf.RateLimitMessage),
		ratelimit.WithHeaders(conf.RateLimitHeaders),
		ratelimit.WithOnDenied(func(string) { m.IncRateLimited() }),
		// one warning per client per window
		ratelimit.WithOnFirstDenied(func(key string) {
			m.IncRateLimitOffender()
			L.Warn(ctx, "rate limit triggered", "client.address", key, "max", conf.RateLimitMax)
		}),
		ratelimit.WithOnStoreError(func(error) { m.IncStoreError(stageRateLimit) }),
	)

	return t, nil
}

// maxDelay is the longest delay the speed limiter adds to a request
func (t *throttle) maxDelay() time.Duration {
	if t.conf.SlowDownMaxDelay > 0 && t.conf.SlowDownMaxDelay < t.conf.SlowDownDelay {
		return t.conf.SlowDownMaxDelay
	}
	return t.conf.SlowDownDelay
}

func (t *throttle) Close() {
	if t.rdb != nil {
		_ = t.rdb.Close()
	}
}
