// Package writelimit rate-limits admin write requests per authenticated
// subject, reusing proxy/budget.Bucket's discrete-refill token bucket shape
// rather than building a separate per-subject counter from scratch.
package writelimit

import (
	"sync"
	"time"

	"github.com/zeralabs/qnoracle/internal/proxy/budget"
	"github.com/zeralabs/qnoracle/internal/proxy/clock"
)

const window = 60 * time.Second

// Registry holds one Bucket per subject, created lazily on first write.
type Registry struct {
	mu      sync.RWMutex
	clock   clock.Clock
	perMin  int64
	buckets map[string]*budget.Bucket
}

// New creates a Registry granting perMin writes per subject per 60-second
// window.
func New(c clock.Clock, perMin int64) *Registry {
	return &Registry{clock: c, perMin: perMin, buckets: make(map[string]*budget.Bucket)}
}

// Allow consumes one write token for subject, creating its bucket on first
// use. A Registry with perMin <= 0 allows everything (write limiting
// disabled).
func (r *Registry) Allow(subject string) bool {
	if r.perMin <= 0 {
		return true
	}
	return r.getOrCreate(subject).TryConsume(1)
}

func (r *Registry) getOrCreate(subject string) *budget.Bucket {
	r.mu.RLock()
	b, ok := r.buckets[subject]
	r.mu.RUnlock()
	if ok {
		return b
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.buckets[subject]; ok {
		return b
	}
	b = budget.New(r.clock, r.perMin, window)
	r.buckets[subject] = b
	return b
}
