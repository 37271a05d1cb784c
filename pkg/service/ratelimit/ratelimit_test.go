package ratelimit_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/socialpulse-lab/socialpulse/pkg/service/ratelimit"
)

func TestCheckWithinLimit(t *testing.T) {
	l := ratelimit.New()
	cfg := ratelimit.Config{Max: 3, Window: time.Minute, Block: time.Minute}

	for i := 0; i < 3; i++ {
		result := l.Check("meta:profile", cfg)
		gt.Bool(t, result.Allowed).True()
		gt.Value(t, result.Remaining).Equal(2 - i)
	}

	result := l.Check("meta:profile", cfg)
	gt.Bool(t, result.Allowed).False()
	gt.Bool(t, result.RetryAfter > 0).True()
}

func TestCheckKeysAreIndependent(t *testing.T) {
	l := ratelimit.New()
	cfg := ratelimit.Config{Max: 1, Window: time.Minute, Block: time.Minute}

	gt.Bool(t, l.Check("meta:profile", cfg).Allowed).True()
	gt.Bool(t, l.Check("meta:profile", cfg).Allowed).False()
	gt.Bool(t, l.Check("meta:media", cfg).Allowed).True()
	gt.Bool(t, l.Check("twitter:profile", cfg).Allowed).True()
}

func TestWindowSlides(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l := ratelimit.New(ratelimit.WithClock(func() time.Time { return now }))
	cfg := ratelimit.Config{Max: 2, Window: time.Minute}

	gt.Bool(t, l.Check("k", cfg).Allowed).True()
	gt.Bool(t, l.Check("k", cfg).Allowed).True()
	gt.Bool(t, l.Check("k", cfg).Allowed).False()

	// A new window resets the counter
	now = now.Add(time.Minute)
	result := l.Check("k", cfg)
	gt.Bool(t, result.Allowed).True()
	gt.Value(t, result.Remaining).Equal(1)
}

func TestBlockOutlastsWindow(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l := ratelimit.New(ratelimit.WithClock(func() time.Time { return now }))
	cfg := ratelimit.Config{Max: 1, Window: time.Minute, Block: 10 * time.Minute}

	gt.Bool(t, l.Check("k", cfg).Allowed).True()
	gt.Bool(t, l.Check("k", cfg).Allowed).False()

	// Window has rolled over but the block persists
	now = now.Add(2 * time.Minute)
	result := l.Check("k", cfg)
	gt.Bool(t, result.Allowed).False()
	gt.Bool(t, result.RetryAfter > 0).True()

	// Block expired
	now = now.Add(9 * time.Minute)
	gt.Bool(t, l.Check("k", cfg).Allowed).True()
}

func TestDefaultBlockIsWindowRemainder(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l := ratelimit.New(ratelimit.WithClock(func() time.Time { return now }))
	cfg := ratelimit.Config{Max: 1, Window: time.Minute}

	gt.Bool(t, l.Check("k", cfg).Allowed).True()

	now = now.Add(30 * time.Second)
	result := l.Check("k", cfg)
	gt.Bool(t, result.Allowed).False()
	gt.Value(t, result.RetryAfter).Equal(30 * time.Second)
}

func TestPruneEvictsStaleBuckets(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l := ratelimit.New(
		ratelimit.WithClock(func() time.Time { return now }),
		ratelimit.WithBucketCeiling(10),
	)
	cfg := ratelimit.Config{Max: 5, Window: time.Minute}

	for i := 0; i < 11; i++ {
		l.Check(fmt.Sprintf("key-%d", i), cfg)
	}
	gt.Value(t, l.Size()).Equal(11)

	// All windows are stale at the next check, so pruning runs
	now = now.Add(2 * time.Minute)
	l.Check("fresh", cfg)
	gt.Value(t, l.Size()).Equal(1)
}
