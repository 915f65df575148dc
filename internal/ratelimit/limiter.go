// Package ratelimit implements an in-process sliding-window admission
// counter. State is per-instance; a multi-instance deployment needs a shared
// counter service instead.
package ratelimit

import (
	"math"
	"sync"
	"time"

	"github.com/smallbiznis/taxbook/internal/clock"
	"go.uber.org/fx"
)

var Module = fx.Module("ratelimit",
	fx.Provide(NewLimiter),
)

// Result is the outcome of a single admission check.
type Result struct {
	Allowed    bool
	Count      int
	RetryAfter time.Duration
}

// RetryAfterSeconds returns the retry hint rounded up to whole seconds.
func (r Result) RetryAfterSeconds() int {
	if r.Allowed || r.RetryAfter <= 0 {
		return 0
	}
	return int(math.Ceil(r.RetryAfter.Seconds()))
}

type bucket struct {
	mu         sync.Mutex
	admissions []time.Time
}

// Limiter tracks admission timestamps per identifier. Checks for the same
// identifier are serialized on the bucket mutex; distinct identifiers only
// share the short read lock used to locate their bucket.
type Limiter struct {
	mu      sync.RWMutex
	buckets map[string]*bucket
	clock   clock.Clock
}

func NewLimiter(clk clock.Clock) *Limiter {
	return &Limiter{
		buckets: make(map[string]*bucket),
		clock:   clk,
	}
}

// Check admits the request if fewer than limit admissions are recorded
// within the trailing window, recording the admission on success.
func (l *Limiter) Check(identifier string, limit int, window time.Duration) Result {
	return l.check(identifier, limit, window, true)
}

// Peek reports the current state without consuming a slot.
func (l *Limiter) Peek(identifier string, limit int, window time.Duration) Result {
	return l.check(identifier, limit, window, false)
}

func (l *Limiter) check(identifier string, limit int, window time.Duration, admit bool) Result {
	if limit <= 0 || window <= 0 {
		return Result{Allowed: true}
	}

	b := l.bucketFor(identifier)

	b.mu.Lock()
	defer b.mu.Unlock()

	now := l.clock.Now()
	cutoff := now.Add(-window)

	kept := b.admissions[:0]
	for _, at := range b.admissions {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}
	b.admissions = kept

	if len(b.admissions) >= limit {
		retryAfter := b.admissions[0].Add(window).Sub(now)
		if retryAfter < 0 {
			retryAfter = 0
		}
		return Result{
			Allowed:    false,
			Count:      len(b.admissions),
			RetryAfter: retryAfter,
		}
	}

	if admit {
		b.admissions = append(b.admissions, now)
	}
	return Result{Allowed: true, Count: len(b.admissions)}
}

func (l *Limiter) bucketFor(identifier string) *bucket {
	l.mu.RLock()
	b, ok := l.buckets[identifier]
	l.mu.RUnlock()
	if ok {
		return b
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if b, ok = l.buckets[identifier]; ok {
		return b
	}
	b = &bucket{}
	l.buckets[identifier] = b
	return b
}

// Sweep removes buckets whose newest admission is older than window.
// Callers may run it periodically to reclaim idle identifiers.
func (l *Limiter) Sweep(window time.Duration) {
	cutoff := l.clock.Now().Add(-window)

	l.mu.Lock()
	defer l.mu.Unlock()
	for id, b := range l.buckets {
		b.mu.Lock()
		idle := len(b.admissions) == 0 || !b.admissions[len(b.admissions)-1].After(cutoff)
		b.mu.Unlock()
		if idle {
			delete(l.buckets, id)
		}
	}
}
