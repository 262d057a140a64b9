// Package singleflight coalesces concurrent upstream misses for the same
// cache fingerprint.
//
// Unlike golang.org/x/sync/singleflight, the waiter handle here is per-caller:
// cancelling one follower's context yields a Canceled outcome to that
// follower only, without affecting the leader or any other waiter. The
// standard singleflight.Group shares one outcome (and, via Forget, one
// cancellation point) across every caller attached to a key, which does not
// satisfy that isolation requirement.
package singleflight

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/zeralabs/qnoracle/internal/oracle"
)

// Outcome is the result delivered to every waiter of a flight.
type Outcome struct {
	Status int
	Body   []byte
	Err    error
}

type entry struct {
	waiters []chan Outcome
}

// Registry coalesces concurrent requests for the same key into a single
// in-flight leader.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// JoinOrLead registers the caller against key. If a flight is already
// in-flight, it returns (false, wait) where wait receives the leader's
// outcome exactly once. If no flight is in-flight, it claims the slot and
// returns (true, nil); the caller must eventually call Finish.
func (r *Registry) JoinOrLead(key string) (leader bool, wait <-chan Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[key]
	if ok {
		ch := make(chan Outcome, 1)
		e.waiters = append(e.waiters, ch)
		return false, ch
	}
	r.entries[key] = &entry{}
	return true, nil
}

// Finish removes the flight for key and delivers outcome to every waiter.
// The first waiter receives the outcome unmodified; subsequent waiters
// receive a wrapper preserving the same error kind when Err is non-nil.
func (r *Registry) Finish(key string, status int, body []byte, err error) {
	r.mu.Lock()
	e, ok := r.entries[key]
	delete(r.entries, key)
	r.mu.Unlock()

	if !ok {
		return
	}
	for i, w := range e.waiters {
		out := Outcome{Status: status, Body: body, Err: err}
		if err != nil && i > 0 {
			out.Err = fmt.Errorf("%w: %s", unwrapKind(err), err.Error())
		}
		w <- out
	}
}

// Wait blocks until either the leader's outcome arrives on wait or ctx is
// done. Cancellation here affects only this caller.
func Wait(ctx context.Context, wait <-chan Outcome) (Outcome, error) {
	select {
	case out := <-wait:
		return out, nil
	case <-ctx.Done():
		return Outcome{}, oracle.ErrCanceled
	}
}

// unwrapKind reduces err to one of the coordinator's sentinel kinds so
// follower wrappers preserve the leader's error kind rather than its full
// wrapped chain.
func unwrapKind(err error) error {
	switch {
	case errors.Is(err, oracle.ErrUpstreamUnavailable):
		return oracle.ErrUpstreamUnavailable
	case errors.Is(err, oracle.ErrRateLimited):
		return oracle.ErrRateLimited
	case errors.Is(err, oracle.ErrBadConfig):
		return oracle.ErrBadConfig
	default:
		return err
	}
}
