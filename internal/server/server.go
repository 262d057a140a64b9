// Package server implements the HTTP transport layer for the qnoracle
// caching proxy: the unauthenticated pass-through cache routes, the direct
// peg-source price lookup, and the JWT-guarded admin API.
package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/trace"

	"github.com/zeralabs/qnoracle/internal/peg"
	"github.com/zeralabs/qnoracle/internal/proxy"
	"github.com/zeralabs/qnoracle/internal/server/adminauth"
	"github.com/zeralabs/qnoracle/internal/server/broadcast"
	"github.com/zeralabs/qnoracle/internal/server/writelimit"
	"github.com/zeralabs/qnoracle/internal/storage"
	"github.com/zeralabs/qnoracle/internal/telemetry"
)

// ReadyChecker reports whether the system is ready to serve traffic.
type ReadyChecker func(ctx context.Context) error

// Deps holds all dependencies for the HTTP server. Several fields are
// nil-able: a nil collaborator disables the feature it backs rather than
// requiring a fake in tests.
type Deps struct {
	Coordinator *proxy.Coordinator // required -- the cache proxy's entry point

	Store        storage.Store          // nil = no admin API mounted
	Auth         *adminauth.Issuer      // nil = admin API mounted but login disabled
	Broadcast    *broadcast.Broadcaster // nil = /admin/v1/sse disabled
	WriteLimiter *writelimit.Registry   // nil = admin writes unlimited
	Peg          *peg.Client            // nil = /v1/price/{mint} disabled

	BootstrapUser     string
	BootstrapPassword string

	Metrics        *telemetry.Metrics // nil = no Prometheus instrumentation
	MetricsHandler http.Handler       // nil = no /metrics endpoint
	Tracer         trace.Tracer       // nil = no distributed tracing
	ReadyCheck     ReadyChecker       // nil = always ready
}

// Server is the qnoracle HTTP transport; it holds no mutable state beyond
// its Deps.
type Server struct {
	deps Deps
}

// New builds the qnoracle HTTP handler with all routes and middleware
// wired per its dependencies.
func New(deps Deps) http.Handler {
	s := &Server{deps: deps}

	r := chi.NewRouter()

	r.Use(s.securityHeaders)
	r.Use(s.recovery)
	r.Use(s.requestID)
	r.Use(s.logging)
	r.Use(s.metricsMiddleware)
	r.Use(s.tracingMiddleware)

	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	// Cache proxy pass-through routes -- unauthenticated.
	r.Route("/qn", func(r chi.Router) {
		r.Get("/addon/912/networks/solana/dexes", s.handleDexes)
		r.Get("/addon/912/networks/solana/pools", s.handlePools)
		r.Get("/addon/912/networks/solana/dexes/{dex}/pools", s.handleDexPools)
		r.Get("/addon/912/networks/solana/pools/{pool_address}", s.handlePoolByAddress)
		r.Get("/addon/912/networks/solana/tokens/{token}", s.handleToken)
		r.Get("/addon/912/networks/solana/tokens/{token}/pools", s.handleTokenPools)
		r.Get("/addon/912/search", s.handleSearch)
		r.Get("/tokens", s.handleAggregate)
	})

	if deps.Peg != nil {
		r.Get("/v1/price/{mint}", s.handleDirectPrice)
	}

	if deps.Store != nil {
		r.Get("/admin/", s.handleAdminPage)

		r.Route("/admin/v1", func(r chi.Router) {
			if deps.Auth != nil {
				r.Post("/login", s.handleLogin)
			}

			r.Group(func(r chi.Router) {
				r.Use(s.authenticate)
				r.Use(s.requireAdmin)
				r.Use(s.writeRateLimit)

				r.Get("/prices", s.handleListPrices)
				r.Post("/prices", s.handleCreatePrice)
				r.Get("/prices/{mint}", s.handleGetPrice)
				r.Patch("/prices/{mint}", s.handlePatchPrice)
				r.Delete("/prices/{mint}", s.handleDeletePrice)

				r.Get("/symbols", s.handleListSymbols)
				r.Post("/symbols", s.handleCreateSymbol)

				r.Get("/config", s.handleGetConfig)
				r.Patch("/config", s.handlePatchConfig)

				r.Get("/audit", s.handleListAudit)

				r.Get("/sse", s.handleSSE)
			})
		})
	}

	return r
}
