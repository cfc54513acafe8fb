package ratelimit

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/keithlinneman/linnemanlabs-static/internal/xerrors"
)

// incrementScript counts a hit and starts the window on the first one.
// Returns {count, remaining window in ms}.
var incrementScript = redis.NewScript(`
local hits = redis.call("INCR", KEYS[1])
local ttl = redis.call("PTTL", KEYS[1])
if ttl <= 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
	ttl = tonumber(ARGV[1])
end
return {hits, ttl}
`)

// RedisStoreOptions configures a RedisStore.
type RedisStoreOptions struct {
	// Window is the length of each client's counting window (required)
	Window time.Duration

	// Prefix is prepended to every key, e.g. "lmstatic:ratelimit:"
	Prefix string

	// Now is the clock used to turn the remaining TTL into a reset time, default time.Now
	Now func() time.Time
}

// RedisStore is a Store backed by redis, so every instance pointed at the
// same server shares one window per client. Windows are plain counter keys
// that expire when the window ends.
type RedisStore struct {
	rdb    redis.UniversalClient
	window time.Duration
	prefix string
	now    func() time.Time
}

// NewRedisStore returns a Store sharing fixed-window counters through rdb.
func NewRedisStore(rdb redis.UniversalClient, opts RedisStoreOptions) *RedisStore {
	if opts.Window <= 0 {
		opts.Window = 15 * time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	prefix := opts.Prefix
	if prefix != "" && !strings.HasSuffix(prefix, ":") {
		prefix += ":"
	}
	return &RedisStore{
		rdb:    rdb,
		window: opts.Window,
		prefix: prefix,
		now:    opts.Now,
	}
}

func (s *RedisStore) key(k string) string { return s.prefix + k }

// Increment implements Store.
func (s *RedisStore) Increment(ctx context.Context, key string) (Hit, error) {
	res, err := incrementScript.Run(ctx, s.rdb, []string{s.key(key)}, s.window.Milliseconds()).Int64Slice()
	if err != nil {
		return Hit{}, xerrors.Wrapf(err, "redis increment %s", s.key(key))
	}
	if len(res) != 2 {
		return Hit{}, xerrors.Newf("redis increment %s: unexpected reply length %d", s.key(key), len(res))
	}
	return Hit{
		Count:   int(res[0]),
		ResetAt: s.now().Add(time.Duration(res[1]) * time.Millisecond),
	}, nil
}

// Reset implements Store.
func (s *RedisStore) Reset(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, s.key(key)).Err(); err != nil {
		return xerrors.Wrapf(err, "redis reset %s", s.key(key))
	}
	return nil
}

// Window returns the configured window length.
func (s *RedisStore) Window() time.Duration { return s.window }
