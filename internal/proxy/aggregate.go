package proxy

import (
	"context"
	"encoding/json"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/zeralabs/qnoracle/internal/proxy/upstream"
)

// Request describes one leg of a GetMany fan-out.
type Request struct {
	Path   string
	Params []upstream.Param
}

// GetMany resolves every request concurrently through Get, deduplicating
// identical fingerprints via the single-flight registry they share, and
// returns the successfully-decoded JSON body for each request that
// succeeded, in input order. Requests that error or whose body is not
// valid JSON are dropped rather than failing the whole batch; GetMany
// itself never returns an error and the caller always responds 200.
func (c *Coordinator) GetMany(ctx context.Context, reqs []Request) []json.RawMessage {
	results := make([]json.RawMessage, len(reqs))

	// Plain errgroup.Group (no WithContext): a failed leg must not cancel
	// its siblings, so Go's returned errors are always nil here and exist
	// only to satisfy the group's signature; failures are logged and
	// dropped instead.
	var g errgroup.Group
	for i, r := range reqs {
		i, r := i, r
		g.Go(func() error {
			status, body, err := c.Get(ctx, r.Path, r.Params)
			if err != nil {
				slog.Warn("aggregate leg failed", "path", r.Path, "error", err)
				return nil
			}
			if status < 200 || status >= 300 {
				return nil
			}
			var raw json.RawMessage
			if err := json.Unmarshal(body, &raw); err != nil {
				slog.Warn("aggregate leg returned non-JSON body", "path", r.Path, "error", err)
				return nil
			}
			results[i] = raw
			return nil
		})
	}
	g.Wait()

	out := make([]json.RawMessage, 0, len(reqs))
	for _, r := range results {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}
