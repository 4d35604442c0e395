// Package limit enforces per-player rate limits on draw actions.
//
// Each draw consumes inventory and appends ledger rows, so a runaway client
// must not be able to flood the engine. Every player gets an independent
// token bucket, created lazily on first use.
package limit

import (
	"errors"
	"sync"

	"golang.org/x/time/rate"
)

// ErrRateLimited is returned when a player's draw bucket is empty.
var ErrRateLimited = errors.New("limit: draw rate limit exceeded")

// DrawLimiter holds one token bucket per player.
type DrawLimiter struct {
	perSecond rate.Limit
	burst     int

	mu      sync.Mutex
	buckets map[string]*rate.Limiter
}

// NewDrawLimiter creates a limiter allowing perSecond draw actions with the
// given burst per player. Non-positive inputs fall back to 1.
func NewDrawLimiter(perSecond float64, burst int) *DrawLimiter {
	if perSecond <= 0 {
		perSecond = 1
	}
	if burst < 1 {
		burst = 1
	}
	return &DrawLimiter{
		perSecond: rate.Limit(perSecond),
		burst:     burst,
		buckets:   make(map[string]*rate.Limiter),
	}
}

// Allow consumes one token from the player's bucket, returning
// ErrRateLimited when the bucket is empty.
func (l *DrawLimiter) Allow(playerID string) error {
	l.mu.Lock()
	b, ok := l.buckets[playerID]
	if !ok {
		b = rate.NewLimiter(l.perSecond, l.burst)
		l.buckets[playerID] = b
	}
	l.mu.Unlock()

	if !b.Allow() {
		return ErrRateLimited
	}
	return nil
}
