// Package l1 is the process-local response cache: fingerprint -> (status,
// body, stored_at). Entries are owned solely by this map and evicted only
// by overwrite or by the bounding W-TinyLFU policy.
//
// Left unbounded, L1 would grow with the fingerprint space of observed
// traffic rather than with actual working-set size. This cache avoids that
// with a size-bounded otter.Cache, sized proportional to HOTSET_SIZE.
package l1

import (
	"fmt"
	"time"

	"github.com/maypok86/otter/v2"
)

// Entry is a single cached response.
type Entry struct {
	Status   int
	Body     []byte
	StoredAt time.Time
}

// Cache is the bounded in-memory L1 tier.
type Cache struct {
	cache *otter.Cache[string, Entry]
}

// New creates an L1 cache holding at most maxSize entries, with no per-entry
// expiry -- freshness is evaluated by the coordinator against the current
// TTL class, since popularity (and hence TTL class) can change between
// writes.
func New(maxSize int) (*Cache, error) {
	c, err := otter.New[string, Entry](&otter.Options[string, Entry]{
		MaximumSize: maxSize,
	})
	if err != nil {
		return nil, fmt.Errorf("create l1 cache: %w", err)
	}
	return &Cache{cache: c}, nil
}

// Get returns the entry for fingerprint, if present.
func (c *Cache) Get(fingerprint string) (Entry, bool) {
	return c.cache.GetIfPresent(fingerprint)
}

// Set stores an entry, overwriting any prior value for fingerprint.
func (c *Cache) Set(fingerprint string, e Entry) {
	c.cache.Set(fingerprint, e)
}

// Delete removes fingerprint's entry, if present.
func (c *Cache) Delete(fingerprint string) {
	c.cache.Invalidate(fingerprint)
}
