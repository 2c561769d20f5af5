package ratelimit

import (
	"context"
	"sync"
	"time"
)

const (
	sweepInterval = 10 * time.Second

	// idleFactor sets how many windows of silence drop an identity from
	// the activity map, bounding memory for players that stop shooting.
	idleFactor = 10
)

// Limiter throttles shot submissions per identity with a sliding window.
// Callers translate a false result into a rejected command; the limiter
// itself never errors.
type Limiter struct {
	window time.Duration
	quota  int

	mu       sync.Mutex
	activity map[string][]time.Time
}

func New(window time.Duration, quota int) *Limiter {
	return &Limiter{
		window:   window,
		quota:    quota,
		activity: make(map[string][]time.Time),
	}
}

// Allow reports whether the identity may act now and, if so, records the
// action timestamp.
func (that *Limiter) Allow(identity string) bool {
	now := time.Now()

	that.mu.Lock()
	defer that.mu.Unlock()

	recent := trimBefore(that.activity[identity], now.Add(-that.window))

	if len(recent) >= that.quota {
		that.activity[identity] = recent
		return false
	}

	that.activity[identity] = append(recent, now)

	return true
}

// Run sweeps stale identities until the context is canceled.
func (that *Limiter) Run(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			that.sweep(time.Now())
		}
	}
}

func (that *Limiter) sweep(now time.Time) {
	cutoff := now.Add(-that.window * idleFactor)

	that.mu.Lock()
	defer that.mu.Unlock()

	for identity, times := range that.activity {
		recent := trimBefore(times, cutoff)
		if len(recent) == 0 {
			delete(that.activity, identity)
			continue
		}

		that.activity[identity] = recent
	}
}

func trimBefore(times []time.Time, cutoff time.Time) []time.Time {
	recent := times[:0]
	for _, t := range times {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}

	return recent
}
