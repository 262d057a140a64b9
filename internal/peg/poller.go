package peg

import (
	"context"
	"log/slog"
	"time"

	"github.com/zeralabs/qnoracle/internal/oracle"
	"github.com/zeralabs/qnoracle/internal/server/broadcast"
	"github.com/zeralabs/qnoracle/internal/storage"
)

// pegSubject is the updated_by stamp written for prices upserted by the
// poller, distinguishing automated peg updates from admin-curated edits in
// the audit trail.
const pegSubject = "peg-source"

// Clock is the minimal time source the poller needs.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Poller is a worker.Worker that periodically refreshes curated prices for
// a fixed set of watched mints from the peg-source RPC.
type Poller struct {
	client  *Client
	prices  storage.PriceStore
	bc      *broadcast.Broadcaster // nil disables event publication
	mints   []string
	interval time.Duration
	clock   Clock
}

// Config configures a Poller.
type Config struct {
	Client      *Client
	Prices      storage.PriceStore
	Broadcaster *broadcast.Broadcaster
	Mints       []string
	Interval    time.Duration
	Clock       Clock
}

// NewPoller creates a Poller from cfg, applying defaults for zero-valued
// fields.
func NewPoller(cfg Config) *Poller {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	clk := cfg.Clock
	if clk == nil {
		clk = systemClock{}
	}
	return &Poller{
		client:   cfg.Client,
		prices:   cfg.Prices,
		bc:       cfg.Broadcaster,
		mints:    cfg.Mints,
		interval: interval,
		clock:    clk,
	}
}

// Name returns the worker identifier.
func (p *Poller) Name() string { return "peg_source_poller" }

// Run ticks every interval until ctx is cancelled. A Poller with no watched
// mints is a no-op loop that simply waits for cancellation.
func (p *Poller) Run(ctx context.Context) error {
	if len(p.mints) == 0 {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.tick(ctx)
		case <-ctx.Done():
			return nil
		}
	}
}

func (p *Poller) tick(ctx context.Context) {
	for _, mint := range p.mints {
		if ctx.Err() != nil {
			return
		}
		usd, ok, err := p.client.FetchUSD(ctx, mint)
		if err != nil {
			slog.Warn("peg: fetch failed", "mint", mint, "error", err)
			continue
		}
		if !ok {
			continue
		}

		price := oracle.Price{Mint: mint, USD: usd, UpdatedAt: p.clock.Now(), UpdatedBy: pegSubject}
		if err := p.prices.UpsertPrice(ctx, price); err != nil {
			slog.Warn("peg: upsert failed", "mint", mint, "error", err)
			continue
		}
		if p.bc != nil {
			p.bc.Publish(broadcast.Event{Type: "peg_price_updated", Target: mint, Detail: price})
		}
	}
}
