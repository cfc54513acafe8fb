// Package ratelimit provides the two per-client throttling stages that sit in
// front of the static site: a SpeedLimiter that delays requests once a client
// passes a threshold inside a window, and a Limiter that rejects requests
// once a client passes a (higher) threshold inside a window.
//
// Both stages count requests in fixed windows that start at a client's first
// request. Counters live in a Store: MemoryStore for a single instance, or
// RedisStore when several instances should share one budget per client.
//
// This is abuse deterrence for a single small site, not DoS protection. It
// does nothing against distributed sources or bandwidth-bill attacks, and the
// delay stage holds a goroutine per delayed request.
package ratelimit
