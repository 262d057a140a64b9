// Package budget implements a discrete-refill token bucket limiting calls
// to the upstream API per fixed time window.
package budget

import (
	"sync"
	"time"

	"github.com/zeralabs/qnoracle/internal/proxy/clock"
)

// Bucket is a token bucket with full refill at window boundaries, as opposed
// to the continuous-leak buckets used elsewhere in the codebase for
// per-caller RPM/TPM limiting. Invariant: 0 <= remaining <= capacity.
type Bucket struct {
	mu       sync.Mutex
	clock    clock.Clock
	capacity int64
	window   time.Duration
	remaining int64
	resetAt  time.Time
}

// New creates a Bucket with the given capacity and refill window, starting
// fully charged.
func New(c clock.Clock, capacity int64, window time.Duration) *Bucket {
	now := c.Now()
	return &Bucket{
		clock:     c,
		capacity:  capacity,
		window:    window,
		remaining: capacity,
		resetAt:   now.Add(window),
	}
}

// TryConsume attempts to consume n tokens. It refills to capacity first if
// the window has elapsed, then decrements if enough tokens remain.
func (b *Bucket) TryConsume(n int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.clock.Now()
	if !now.Before(b.resetAt) {
		b.remaining = b.capacity
		b.resetAt = now.Add(b.window)
	}

	if b.remaining >= n {
		b.remaining -= n
		return true
	}
	return false
}

// Remaining returns the current token count without consuming, applying a
// refill check first.
func (b *Bucket) Remaining() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.clock.Now()
	if !now.Before(b.resetAt) {
		b.remaining = b.capacity
		b.resetAt = now.Add(b.window)
	}
	return b.remaining
}
