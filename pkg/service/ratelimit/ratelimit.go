package ratelimit

import (
	"sync"
	"time"
)

// defaultBucketCeiling caps the bucket table before opportunistic pruning
const defaultBucketCeiling = 1000

// Config controls one sliding window
type Config struct {
	Max    int
	Window time.Duration
	// Block is how long a key stays blocked once Max is exceeded.
	// Zero means the remainder of the current window.
	Block time.Duration
}

// Result reports the outcome of a limiter check
type Result struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

type bucket struct {
	count        int
	window       time.Duration
	windowStart  time.Time
	blockedUntil time.Time
}

// Limiter is a best-effort, process-local sliding-window rate limiter.
// It exists to avoid triggering platform-side throttling during bursts,
// not to enforce global cross-instance caps.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	ceiling int
	now     func() time.Time
}

// Option configures a Limiter
type Option func(*Limiter)

// WithBucketCeiling overrides the pruning threshold
func WithBucketCeiling(n int) Option {
	return func(l *Limiter) {
		l.ceiling = n
	}
}

// WithClock overrides the time source for tests
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

// New creates a Limiter
func New(opts ...Option) *Limiter {
	l := &Limiter{
		buckets: make(map[string]*bucket),
		ceiling: defaultBucketCeiling,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Check records one event for the key and reports whether it is allowed.
// The first event in a fresh window starts the counter; exceeding Max
// blocks the key until the block period elapses.
func (l *Limiter) Check(key string, cfg Config) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	if len(l.buckets) > l.ceiling {
		l.prune(now)
	}

	b, ok := l.buckets[key]
	if !ok || now.Sub(b.windowStart) >= cfg.Window {
		if ok && now.Before(b.blockedUntil) {
			return Result{Allowed: false, RetryAfter: b.blockedUntil.Sub(now)}
		}
		l.buckets[key] = &bucket{count: 1, window: cfg.Window, windowStart: now}
		return Result{Allowed: true, Remaining: cfg.Max - 1}
	}

	if now.Before(b.blockedUntil) {
		return Result{Allowed: false, RetryAfter: b.blockedUntil.Sub(now)}
	}

	b.count++
	if b.count > cfg.Max {
		if cfg.Block > 0 {
			b.blockedUntil = now.Add(cfg.Block)
		} else {
			b.blockedUntil = b.windowStart.Add(cfg.Window)
		}
		return Result{Allowed: false, RetryAfter: b.blockedUntil.Sub(now)}
	}

	return Result{Allowed: true, Remaining: cfg.Max - b.count}
}

// prune evicts buckets whose window is stale and that are not blocked.
// Caller must hold the lock.
func (l *Limiter) prune(now time.Time) {
	for key, b := range l.buckets {
		if now.Before(b.blockedUntil) {
			continue
		}
		if now.Sub(b.windowStart) >= b.window {
			delete(l.buckets, key)
		}
	}
}

// Size returns the current bucket count
func (l *Limiter) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
