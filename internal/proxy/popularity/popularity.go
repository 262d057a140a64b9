// Package popularity tracks a per-fingerprint usage score that drives TTL
// class selection.
package popularity

import "sync"

// decay and increment per the bump formula: p <- min(cap, p*decay + increment).
const (
	decay     = 0.95
	increment = 1.0
	scoreCap  = 1_000_000
)

// Tracker holds an in-memory popularity score per fingerprint. The decay is
// applied only at bump time -- there is no wall-clock decay.
type Tracker struct {
	mu     sync.RWMutex
	scores map[string]float64
}

// New creates an empty Tracker.
func New() *Tracker {
	return &Tracker{scores: make(map[string]float64)}
}

// Bump applies p <- min(cap, p*0.95 + 1.0) for key and returns the new score.
func (t *Tracker) Bump(key string) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	p := t.scores[key]*decay + increment
	if p > scoreCap {
		p = scoreCap
	}
	t.scores[key] = p
	return p
}

// Get returns the current score for key, or 0 if never bumped.
func (t *Tracker) Get(key string) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.scores[key]
}

// TopK returns up to k keys ordered by descending score. Ties broken by
// insertion order is not guaranteed; callers needing determinism should
// prefer the durable tier's ORDER BY for the hot-set refresher, which is
// the source of truth there -- this in-memory view is used only for fast
// TTL-class lookups on the request path.
func (t *Tracker) TopK(k int) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	type kv struct {
		key   string
		score float64
	}
	all := make([]kv, 0, len(t.scores))
	for k, v := range t.scores {
		all = append(all, kv{k, v})
	}
	// simple selection: good enough, TopK is not called on a hot path.
	for i := 0; i < len(all) && i < k; i++ {
		maxIdx := i
		for j := i + 1; j < len(all); j++ {
			if all[j].score > all[maxIdx].score {
				maxIdx = j
			}
		}
		all[i], all[maxIdx] = all[maxIdx], all[i]
	}
	if k > len(all) {
		k = len(all)
	}
	out := make([]string, k)
	for i := 0; i < k; i++ {
		out[i] = all[i].key
	}
	return out
}
