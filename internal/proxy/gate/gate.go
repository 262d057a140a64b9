// Package gate provides a bounded concurrency permit pool for outstanding
// upstream requests.
package gate

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Gate bounds the number of concurrently outstanding upstream calls.
type Gate struct {
	sem *semaphore.Weighted
}

// New creates a Gate with size permits.
func New(size int64) *Gate {
	return &Gate{sem: semaphore.NewWeighted(size)}
}

// Acquire blocks until a permit is available or ctx is done.
func (g *Gate) Acquire(ctx context.Context) error {
	return g.sem.Acquire(ctx, 1)
}

// Release returns a permit acquired via Acquire.
func (g *Gate) Release() {
	g.sem.Release(1)
}
