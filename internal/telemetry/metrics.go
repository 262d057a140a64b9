// Package telemetry provides observability primitives for the qnoracle
// caching proxy.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus collectors for the proxy and admin API.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ActiveRequests  prometheus.Gauge

	L1Hits       prometheus.Counter
	L2Hits       prometheus.Counter
	L2Stale      prometheus.Counter
	CacheMisses  prometheus.Counter
	UpstreamCalls   *prometheus.CounterVec // labels: outcome (ok, error)
	BudgetDenials   prometheus.Counter
	SingleflightJoins prometheus.Counter // followers that coalesced onto a leader
	HotsetRefreshed   prometheus.Counter
	HotsetSwept       prometheus.Counter
	RateLimitRejects  *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics with the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "qnoracle",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),

		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:                       "qnoracle",
			Name:                            "request_duration_seconds",
			Help:                            "HTTP request duration in seconds.",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 0,
		}, []string{"method", "path"}),

		ActiveRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "qnoracle",
			Name:      "active_requests",
			Help:      "Number of currently active requests.",
		}),

		L1Hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "qnoracle",
			Name:      "l1_hits_total",
			Help:      "In-memory cache hits.",
		}),

		L2Hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "qnoracle",
			Name:      "l2_hits_total",
			Help:      "Durable cache hits (fresh row).",
		}),

		L2Stale: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "qnoracle",
			Name:      "l2_stale_total",
			Help:      "Durable cache hits served stale-while-revalidate.",
		}),

		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "qnoracle",
			Name:      "cache_misses_total",
			Help:      "Requests that reached the upstream client.",
		}),

		UpstreamCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "qnoracle",
			Name:      "upstream_calls_total",
			Help:      "Upstream calls issued by the fetch coordinator, by outcome.",
		}, []string{"outcome"}),

		BudgetDenials: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "qnoracle",
			Name:      "budget_denials_total",
			Help:      "Upstream calls denied by the token-bucket budget.",
		}),

		SingleflightJoins: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "qnoracle",
			Name:      "singleflight_joins_total",
			Help:      "Requests that joined an in-flight leader instead of fetching.",
		}),

		HotsetRefreshed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "qnoracle",
			Name:      "hotset_refreshed_total",
			Help:      "Fingerprints refreshed by the hot-set refresher.",
		}),

		HotsetSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "qnoracle",
			Name:      "hotset_swept_total",
			Help:      "Expired L2 rows removed by the hot-set refresher sweep.",
		}),

		RateLimitRejects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "qnoracle",
			Name:      "ratelimit_rejects_total",
			Help:      "Total admin write rate-limit rejections.",
		}, []string{"type"}),
	}

	reg.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.ActiveRequests,
		m.L1Hits,
		m.L2Hits,
		m.L2Stale,
		m.CacheMisses,
		m.UpstreamCalls,
		m.BudgetDenials,
		m.SingleflightJoins,
		m.HotsetRefreshed,
		m.HotsetSwept,
		m.RateLimitRejects,
	)

	return m
}
