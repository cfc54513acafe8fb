package ratelimit

import (
	"context"
	"sync"
	"time"
)

// record is one client's window
type record struct {
	count   int
	resetAt time.Time
}

// MemoryStoreOptions configures a MemoryStore.
type MemoryStoreOptions struct {
	// Window is the length of each client's counting window (required)
	Window time.Duration

	// CleanupInterval controls how often expired windows are evicted.
	// default: Window/2, bounded to 1s..1m
	CleanupInterval time.Duration

	// Now is the clock used for windows, default time.Now
	Now func() time.Time
}

// MemoryStore is an in-process Store. Counts are not shared between
// instances and are lost on restart.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*record

	window time.Duration
	now    func() time.Time
}

// NewMemoryStore creates a MemoryStore and starts its eviction goroutine,
// which stops when ctx is cancelled.
func NewMemoryStore(ctx context.Context, opts MemoryStoreOptions) *MemoryStore {
	if opts.Window <= 0 {
		opts.Window = 15 * time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = min(max(opts.Window/2, time.Second), time.Minute)
	}

	s := &MemoryStore{
		records: make(map[string]*record),
		window:  opts.Window,
		now:     opts.Now,
	}
	go s.cleanup(ctx, opts.CleanupInterval)
	return s
}

// Increment implements Store.
func (s *MemoryStore) Increment(_ context.Context, key string) (Hit, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key]
	if !ok || !now.Before(rec.resetAt) {
		rec = &record{resetAt: now.Add(s.window)}
		s.records[key] = rec
	}
	rec.count++

	return Hit{Count: rec.count, ResetAt: rec.resetAt}, nil
}

// Reset implements Store.
func (s *MemoryStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.records, key)
	s.mu.Unlock()
	return nil
}

// Len returns the number of clients currently holding a window, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Window returns the configured window length.
func (s *MemoryStore) Window() time.Duration { return s.window }

// evictExpired drops every window that has ended
func (s *MemoryStore) evictExpired() {
	now := s.now()

	s.mu.Lock()
	for key, rec := range s.records {
		if !now.Before(rec.resetAt) {
			delete(s.records, key)
		}
	}
	s.mu.Unlock()
}

func (s *MemoryStore) cleanup(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.evictExpired()
		}
	}
}
