package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNewMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewPedanticRegistry()
	m := NewMetrics(reg)

	if m.RequestsTotal == nil {
		t.Error("RequestsTotal is nil")
	}
	if m.RequestDuration == nil {
		t.Error("RequestDuration is nil")
	}
	if m.ActiveRequests == nil {
		t.Error("ActiveRequests is nil")
	}
	if m.L1Hits == nil {
		t.Error("L1Hits is nil")
	}
	if m.L2Hits == nil {
		t.Error("L2Hits is nil")
	}
	if m.L2Stale == nil {
		t.Error("L2Stale is nil")
	}
	if m.CacheMisses == nil {
		t.Error("CacheMisses is nil")
	}
	if m.UpstreamCalls == nil {
		t.Error("UpstreamCalls is nil")
	}
	if m.BudgetDenials == nil {
		t.Error("BudgetDenials is nil")
	}
	if m.SingleflightJoins == nil {
		t.Error("SingleflightJoins is nil")
	}
	if m.HotsetRefreshed == nil {
		t.Error("HotsetRefreshed is nil")
	}
	if m.HotsetSwept == nil {
		t.Error("HotsetSwept is nil")
	}
	if m.RateLimitRejects == nil {
		t.Error("RateLimitRejects is nil")
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if len(families) == 0 {
		t.Error("expected at least one metric family")
	}
}

func TestNewMetricsIncrement(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewPedanticRegistry()
	m := NewMetrics(reg)

	m.RequestsTotal.WithLabelValues("GET", "/v1/dex/pool", "200").Inc()
	m.L1Hits.Inc()
	m.L2Hits.Inc()
	m.CacheMisses.Inc()
	m.UpstreamCalls.WithLabelValues("ok").Inc()
	m.BudgetDenials.Inc()
	m.SingleflightJoins.Inc()
	m.ActiveRequests.Set(5)
	m.RequestDuration.WithLabelValues("GET", "/v1/dex/pool").Observe(0.123)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather after increment: %v", err)
	}

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}

	want := []string{
		"qnoracle_requests_total",
		"qnoracle_l1_hits_total",
		"qnoracle_l2_hits_total",
		"qnoracle_cache_misses_total",
		"qnoracle_upstream_calls_total",
		"qnoracle_budget_denials_total",
		"qnoracle_singleflight_joins_total",
		"qnoracle_active_requests",
		"qnoracle_request_duration_seconds",
	}
	for _, name := range want {
		if !names[name] {
			t.Errorf("missing metric %q in gathered families", name)
		}
	}
}

// SetupTracing is not unit-tested because it requires a gRPC connection
// to an OTLP collector, which is integration-test territory.
