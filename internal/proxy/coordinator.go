package proxy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zeralabs/qnoracle/internal/oracle"
	"github.com/zeralabs/qnoracle/internal/proxy/budget"
	"github.com/zeralabs/qnoracle/internal/proxy/clock"
	"github.com/zeralabs/qnoracle/internal/proxy/gate"
	"github.com/zeralabs/qnoracle/internal/proxy/l1"
	"github.com/zeralabs/qnoracle/internal/proxy/popularity"
	"github.com/zeralabs/qnoracle/internal/proxy/singleflight"
	"github.com/zeralabs/qnoracle/internal/proxy/upstream"
	"github.com/zeralabs/qnoracle/internal/storage"
	"github.com/zeralabs/qnoracle/internal/telemetry"
)

// upstreamClient is the subset of *upstream.Client the Coordinator needs,
// narrowed so tests can substitute a fake instead of making real requests.
type upstreamClient interface {
	Get(ctx context.Context, path string, params []upstream.Param) (status int, body []byte, err error)
}

// Coordinator orchestrates the L1 -> L2 -> single-flight -> upstream path
// and populates both cache tiers. It is the single entry point for cached
// GETs.
type Coordinator struct {
	l1         *l1.Cache
	l2         storage.HTTPCacheStore // nil disables the durable tier
	popularity *popularity.Tracker
	budget     *budget.Bucket
	gate       *gate.Gate
	sf         *singleflight.Registry
	upstream   upstreamClient
	clock      clock.Clock

	ttls     TTLs
	popHot   float64
	popWarm  float64
	maxStale time.Duration

	tracer  trace.Tracer       // nil disables tracing
	metrics *telemetry.Metrics // nil disables metrics
}

// Deps bundles the Coordinator's collaborators.
type Deps struct {
	L1           *l1.Cache
	L2           storage.HTTPCacheStore
	Popularity   *popularity.Tracker
	Budget       *budget.Bucket
	Gate         *gate.Gate
	SingleFlight *singleflight.Registry
	Upstream     upstreamClient
	Clock        clock.Clock
	TTLs         TTLs
	PopHot       float64
	PopWarm      float64
	MaxStale     time.Duration
	Tracer       trace.Tracer
	Metrics      *telemetry.Metrics
}

// New creates a Coordinator from its dependencies.
func New(d Deps) *Coordinator {
	return &Coordinator{
		l1:         d.L1,
		l2:         d.L2,
		popularity: d.Popularity,
		budget:     d.Budget,
		gate:       d.Gate,
		sf:         d.SingleFlight,
		upstream:   d.Upstream,
		clock:      d.Clock,
		ttls:       d.TTLs,
		popHot:     d.PopHot,
		popWarm:    d.PopWarm,
		maxStale:   d.MaxStale,
		tracer:     d.Tracer,
		metrics:    d.Metrics,
	}
}

// Get resolves a single cached GET for (path, params), following
// L1 -> L2 -> single-flight -> upstream.
func (c *Coordinator) Get(ctx context.Context, path string, params []upstream.Param) (status int, body []byte, err error) {
	fp := Fingerprint(path, params)
	pop := c.popularity.Bump(fp)
	class := SelectTTLClass(path, pop, c.popHot, c.popWarm)
	ttl := c.ttls.Duration(class)
	now := c.clock.Now()

	if e, ok := c.l1.Get(fp); ok && now.Sub(e.StoredAt) < ttl {
		if c.metrics != nil {
			c.metrics.L1Hits.Inc()
		}
		return e.Status, e.Body, nil
	}

	if c.l2 != nil {
		if status, body, ok := c.checkL2(ctx, fp, path, params, pop, now); ok {
			return status, body, nil
		}
	}

	return c.resolveMiss(ctx, fp, path, params, pop, ttl, false)
}

// Refresh unconditionally re-fetches (path, params) through the
// single-flight/upstream path, bypassing the L1/L2 freshness checks Get
// applies. It is used by the hot-set refresher, which must refresh its
// top-K fingerprints regardless of per-key freshness (spec's hot-set
// refresher is unconditional, not TTL-aware) -- routing through Get would
// let an already-fresh key short-circuit before reaching upstream at all.
// The caller is expected to have already consumed one Budget token via
// TryConsume before calling Refresh, so Refresh does not consume a second
// one; a budget-denied refresh is simply never attempted by the caller.
func (c *Coordinator) Refresh(ctx context.Context, path string, params []upstream.Param) (status int, body []byte, err error) {
	fp := Fingerprint(path, params)
	pop := c.popularity.Get(fp)
	class := SelectTTLClass(path, pop, c.popHot, c.popWarm)
	ttl := c.ttls.Duration(class)
	return c.resolveMiss(ctx, fp, path, params, pop, ttl, true)
}

// checkL2 reads the durable row, promoting a fresh row to L1 or spawning a
// stale-while-revalidate refresh. ok is false when the caller must fall
// through to the single-flight miss path.
func (c *Coordinator) checkL2(ctx context.Context, fp, path string, params []upstream.Param, pop float64, now time.Time) (status int, body []byte, ok bool) {
	row, found, err := c.l2.GetAndTouch(ctx, fp, now.Unix())
	if err != nil {
		// L2 errors are always swallowed and treated as cache miss.
		slog.Warn("l2 read failed, treating as miss", "fingerprint", fp, "error", err)
		return 0, nil, false
	}
	if !found {
		return 0, nil, false
	}

	nowEpoch := now.Unix()
	if row.ExpiresAt >= nowEpoch {
		body := []byte(row.Body)
		c.l1.Set(fp, l1.Entry{Status: row.Status, Body: body, StoredAt: now})
		if c.metrics != nil {
			c.metrics.L2Hits.Inc()
		}
		return row.Status, body, true
	}

	if nowEpoch-row.ExpiresAt <= int64(c.maxStale/time.Second) {
		if c.metrics != nil {
			c.metrics.L2Stale.Inc()
		}
		go c.refreshDetached(path, params)
		return row.Status, []byte(row.Body), true
	}

	return 0, nil, false
}

// refreshDetached runs the single-flight miss path for (path, params) in a
// fresh, uncancelable context, spending one Budget token like any other
// miss. It does not re-enter Get, whose L2 check would find the same stale
// row and return it without fetching. Its outcome never blocks or
// supplants the stale response already returned to the original caller;
// failures are logged and dropped.
func (c *Coordinator) refreshDetached(path string, params []upstream.Param) {
	ctx := context.Background()
	fp := Fingerprint(path, params)
	pop := c.popularity.Get(fp)
	ttl := c.ttls.Duration(SelectTTLClass(path, pop, c.popHot, c.popWarm))
	if _, _, err := c.resolveMiss(ctx, fp, path, params, pop, ttl, false); err != nil {
		slog.Warn("background refresh failed", "path", path, "error", err)
	}
}

// resolveMiss runs the single-flight + budget + upstream path for a
// fingerprint with no usable cache entry. skipBudget is true for the
// hot-set refresher's Refresh calls, whose caller already spent the one
// Budget token this fetch is allowed to spend.
func (c *Coordinator) resolveMiss(ctx context.Context, fp, path string, params []upstream.Param, pop float64, ttl time.Duration, skipBudget bool) (int, []byte, error) {
	leader, wait := c.sf.JoinOrLead(fp)
	if !leader {
		if c.metrics != nil {
			c.metrics.SingleflightJoins.Inc()
		}
		out, err := singleflight.Wait(ctx, wait)
		if err != nil {
			return 0, nil, err
		}
		return out.Status, out.Body, out.Err
	}

	status, body, err := c.fetchAsLeader(ctx, fp, path, params, pop, ttl, skipBudget)
	c.sf.Finish(fp, status, body, err)
	if err != nil {
		return 0, nil, err
	}
	return status, body, nil
}

// fetchAsLeader acquires a concurrency permit, consumes budget unless
// skipBudget is set, and calls upstream. On budget denial it falls back to
// any existing L2 row regardless of freshness before surfacing RateLimited.
func (c *Coordinator) fetchAsLeader(ctx context.Context, fp, path string, params []upstream.Param, pop float64, ttl time.Duration, skipBudget bool) (int, []byte, error) {
	var span trace.Span
	if c.tracer != nil {
		ctx, span = c.tracer.Start(ctx, "proxy.upstream_get", trace.WithAttributes(attribute.String("fingerprint", fp)))
		defer span.End()
	}

	if err := c.gate.Acquire(ctx); err != nil {
		return 0, nil, fmt.Errorf("%w: %v", oracle.ErrCanceled, err)
	}

	if !skipBudget && !c.budget.TryConsume(1) {
		c.gate.Release()
		if c.metrics != nil {
			c.metrics.BudgetDenials.Inc()
		}
		if c.l2 != nil {
			if row, ok, err := c.l2.GetAndTouch(ctx, fp, c.clock.Now().Unix()); err == nil && ok {
				return row.Status, []byte(row.Body), nil
			}
		}
		return 0, nil, oracle.ErrRateLimited
	}

	if c.metrics != nil {
		c.metrics.CacheMisses.Inc()
	}
	status, body, err := c.upstream.Get(ctx, path, params)
	c.gate.Release()
	if err != nil {
		if c.metrics != nil {
			c.metrics.UpstreamCalls.WithLabelValues("error").Inc()
		}
		return 0, nil, err
	}
	if c.metrics != nil {
		c.metrics.UpstreamCalls.WithLabelValues("ok").Inc()
	}

	now := c.clock.Now()
	c.l1.Set(fp, l1.Entry{Status: status, Body: body, StoredAt: now})
	if c.l2 != nil {
		row := storage.HTTPCacheRow{
			CacheKey:     fp,
			Status:       status,
			Body:         string(body),
			StoredAt:     now.Unix(),
			ExpiresAt:    now.Add(ttl).Unix(),
			Popularity:   pop,
			LastAccessed: now.Unix(),
		}
		if err := c.l2.Upsert(ctx, row); err != nil {
			slog.Warn("l2 write failed", "fingerprint", fp, "error", err)
		}
	}
	return status, body, nil
}

// IsBadConfig reports whether err is the coordinator's unrecoverable
// configuration error.
func IsBadConfig(err error) bool { return errors.Is(err, oracle.ErrBadConfig) }
