package core

import (
	"context"
	"log/slog"
	"time"

	"github.com/mazen160/go-random"
)

// DefaultAvgInterval is the target average spacing between authenticated
// requests.
const DefaultAvgInterval = 600 * time.Second

// RateLimiter paces outgoing requests to lessen the load on the site.
// Unauthenticated requests get a flat minimum spacing. Authenticated
// requests are measured against a target average rate: the further ahead
// of schedule the caller gets, the harsher the delay band, so short
// bursts pass quickly while sustained over-rate usage is throttled hard.
// The limiter is confined to the single goroutine issuing authenticated
// requests and needs no locking.
type RateLimiter struct {
	avgInterval time.Duration

	first time.Time
	last  time.Time
	count int

	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
	randInt func(min, max int) int
}

func NewRateLimiter(avgInterval time.Duration) *RateLimiter {
	if avgInterval <= 0 {
		avgInterval = DefaultAvgInterval
	}
	return &RateLimiter{
		avgInterval: avgInterval,
		now:         time.Now,
		sleep:       sleepContext,
		randInt:     randRange,
	}
}

// Seed primes the request counter from persisted per-day stats, so the
// rate budget survives restarts.
func (l *RateLimiter) Seed(count int) {
	l.count = count
}

// Wait blocks until the next request may go out. It only returns an error
// when the context is canceled mid-sleep.
func (l *RateLimiter) Wait(ctx context.Context, requiresAuth bool) error {
	delay := l.delay(requiresAuth)
	slog.Debug("politeness delay", "seconds", delay.Seconds())
	if wait := l.last.Add(delay).Sub(l.now()); wait > 0 {
		if err := l.sleep(ctx, wait); err != nil {
			return err
		}
	}
	l.last = l.now()
	return nil
}

func (l *RateLimiter) delay(requiresAuth bool) time.Duration {
	if !requiresAuth {
		return time.Second
	}
	now := l.now()
	// a long pause since the last request moves the anchor forward to
	// what the target average would predict for the current counter
	anchor := now.Add(-time.Duration(l.count) * l.avgInterval)
	if anchor.After(l.first) {
		l.first = anchor
	}
	// number of requests issued ahead of the expected average
	ahead := l.count - int(now.Sub(l.first)/l.avgInterval)
	l.count++
	switch {
	case ahead < 10:
		return time.Second
	case ahead < 50:
		return time.Duration(l.randInt(2, 8)) * time.Second
	case ahead < 200:
		return time.Duration(l.randInt(5, 35)) * time.Second
	case ahead < 500:
		return time.Duration(l.randInt(10, 50)) * time.Second
	}
	return time.Duration(l.randInt(20, 80)) * time.Second
}

// randRange returns a random int in [min, max].
func randRange(min, max int) int {
	n, err := random.IntRange(min, max+1)
	if err != nil {
		return min
	}
	return n
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
