// Package hotset implements the background worker that keeps the durable
// cache's most popular entries warm and sweeps out rows past their
// stale-while-revalidate grace window.
package hotset

import (
	"context"
	"log/slog"
	"time"

	"github.com/zeralabs/qnoracle/internal/proxy"
	"github.com/zeralabs/qnoracle/internal/proxy/budget"
	"github.com/zeralabs/qnoracle/internal/proxy/clock"
	"github.com/zeralabs/qnoracle/internal/proxy/upstream"
	"github.com/zeralabs/qnoracle/internal/storage"
	"github.com/zeralabs/qnoracle/internal/telemetry"
)

const defaultInterval = 20 * time.Second

// Coordinator is the subset of proxy.Coordinator the refresher drives.
// Refresh bypasses L1/L2 freshness checks -- see proxy.Coordinator.Refresh.
type Coordinator interface {
	Refresh(ctx context.Context, path string, params []upstream.Param) (status int, body []byte, err error)
}

// Refresher periodically re-fetches the top-K most popular fingerprints
// and sweeps durable rows past their stale-while-revalidate grace window.
type Refresher struct {
	l2          storage.HTTPCacheStore
	coordinator Coordinator
	budget      *budget.Bucket
	clock       clock.Clock

	topK       int
	sweepBatch int
	maxStale   time.Duration
	interval   time.Duration
	metrics    *telemetry.Metrics // nil disables metrics
}

// Config configures a Refresher.
type Config struct {
	L2          storage.HTTPCacheStore
	Coordinator Coordinator
	Budget      *budget.Bucket
	Clock       clock.Clock
	TopK        int
	SweepBatch  int
	MaxStale    time.Duration
	Interval    time.Duration
	Metrics     *telemetry.Metrics
}

// New creates a Refresher from cfg, applying defaults for zero-valued
// fields.
func New(cfg Config) *Refresher {
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Refresher{
		l2:          cfg.L2,
		coordinator: cfg.Coordinator,
		budget:      cfg.Budget,
		clock:       cfg.Clock,
		topK:        cfg.TopK,
		sweepBatch:  cfg.SweepBatch,
		maxStale:    cfg.MaxStale,
		interval:    interval,
		metrics:     cfg.Metrics,
	}
}

// Name returns the worker identifier.
func (r *Refresher) Name() string { return "hotset_refresher" }

// Run ticks every interval until ctx is cancelled, refreshing the hot set
// and sweeping expired rows on each tick.
func (r *Refresher) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.tick(ctx)
		case <-ctx.Done():
			return nil
		}
	}
}

// tick runs one refresh-and-sweep cycle: it looks up the K most popular
// fingerprints and unconditionally re-fetches each while budget allows
// (stopping at the first budget denial), then sweeps up to sweepBatch rows
// past their max_stale grace window. Refresh, not Get, is used so a key
// that is still fresh in L1/L2 does not silently skip the upstream call
// the budget token already paid for -- the TryConsume here is the
// refresher's sole spender for this fetch; Refresh itself never consumes a
// second token.
func (r *Refresher) tick(ctx context.Context) {
	keys, err := r.l2.TopByPopularity(ctx, r.topK)
	if err != nil {
		slog.Warn("hotset: failed to list top fingerprints", "error", err)
		return
	}

	refreshed := 0
	for _, key := range keys {
		if ctx.Err() != nil {
			return
		}
		path, params, ok := proxy.ParseFingerprint(key)
		if !ok {
			continue
		}
		if !r.budget.TryConsume(1) {
			slog.Debug("hotset: budget exhausted, stopping early", "refreshed", refreshed, "requested", len(keys))
			break
		}
		if _, _, err := r.coordinator.Refresh(ctx, path, params); err != nil {
			slog.Warn("hotset: refresh failed", "fingerprint", key, "error", err)
			continue
		}
		refreshed++
	}
	if r.metrics != nil && refreshed > 0 {
		r.metrics.HotsetRefreshed.Add(float64(refreshed))
	}

	swept, err := r.l2.SweepExpired(ctx, r.clock.Now().Unix(), int64(r.maxStale/time.Second), r.sweepBatch)
	if err != nil {
		slog.Warn("hotset: sweep failed", "error", err)
		return
	}
	if r.metrics != nil && swept > 0 {
		r.metrics.HotsetSwept.Add(float64(swept))
	}
	if refreshed > 0 || swept > 0 {
		slog.Info("hotset: tick complete", "refreshed", refreshed, "swept", swept)
	}
}
