package server

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/zeralabs/qnoracle/internal/proxy"
	"github.com/zeralabs/qnoracle/internal/proxy/upstream"
)

// passthroughParams lists the query parameters forwarded verbatim for a
// given route, in the order spec'd -- upstream treats param order as
// significant for some endpoints (see upstream.Client.Get).
func passthroughParams(r *http.Request, names ...string) []upstream.Param {
	q := r.URL.Query()
	var params []upstream.Param
	for _, name := range names {
		if v := q.Get(name); v != "" {
			params = append(params, upstream.Param{Key: name, Value: v})
		}
	}
	return params
}

// handleDexes serves GET /qn/addon/912/networks/solana/dexes.
func (s *Server) handleDexes(w http.ResponseWriter, r *http.Request) {
	s.proxyGet(w, r, "addon/912/networks/solana/dexes", passthroughParams(r, "page", "limit", "sort", "order_by"))
}

// handlePools serves GET /qn/addon/912/networks/solana/pools.
func (s *Server) handlePools(w http.ResponseWriter, r *http.Request) {
	s.proxyGet(w, r, "addon/912/networks/solana/pools", passthroughParams(r, "page", "limit", "sort", "order_by"))
}

// handleDexPools serves GET /qn/addon/912/networks/solana/dexes/{dex}/pools.
func (s *Server) handleDexPools(w http.ResponseWriter, r *http.Request) {
	dex := chi.URLParam(r, "dex")
	path := "addon/912/networks/solana/dexes/" + dex + "/pools"
	s.proxyGet(w, r, path, passthroughParams(r, "page", "limit", "sort", "order_by"))
}

// handlePoolByAddress serves GET /qn/addon/912/networks/solana/pools/{pool_address}.
func (s *Server) handlePoolByAddress(w http.ResponseWriter, r *http.Request) {
	addr := chi.URLParam(r, "pool_address")
	path := "addon/912/networks/solana/pools/" + addr
	s.proxyGet(w, r, path, passthroughParams(r, "inversed"))
}

// handleToken serves GET /qn/addon/912/networks/solana/tokens/{token}.
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	path := "addon/912/networks/solana/tokens/" + token
	s.proxyGet(w, r, path, nil)
}

// handleTokenPools serves GET /qn/addon/912/networks/solana/tokens/{token}/pools.
func (s *Server) handleTokenPools(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	path := "addon/912/networks/solana/tokens/" + token + "/pools"
	s.proxyGet(w, r, path, passthroughParams(r, "sort", "order_by", "address"))
}

// handleSearch serves GET /qn/addon/912/search.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	s.proxyGet(w, r, "addon/912/search", passthroughParams(r, "query"))
}

// proxyGet is the Request Adapter: it resolves path+params through the
// Coordinator and mirrors the upstream status and body verbatim, mapping
// coordinator errors to the status codes spec'd for the cache proxy.
func (s *Server) proxyGet(w http.ResponseWriter, r *http.Request, path string, params []upstream.Param) {
	status, body, err := s.deps.Coordinator.Get(r.Context(), path, params)
	if err != nil {
		writeProxyError(w, err)
		return
	}
	w.Header()["Content-Type"] = jsonCT
	w.WriteHeader(status)
	w.Write(body)
}

// writeProxyError maps a Coordinator error to its HTTP status via the
// shared error taxonomy: 429 on local rate-limit, 400 on bad config, 500 on
// anything else.
func writeProxyError(w http.ResponseWriter, err error) {
	writeJSON(w, errorStatus(err), errorResponse(err.Error()))
}

// handleAggregate serves GET /qn/tokens?addresses=a,b,c: one coordinator Get
// per address, fanned out concurrently and coalesced by the single-flight
// registry on duplicates.
func (s *Server) handleAggregate(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("addresses")
	if raw == "" {
		writeJSON(w, http.StatusOK, []any{})
		return
	}

	addrs := strings.Split(raw, ",")
	reqs := make([]proxy.Request, 0, len(addrs))
	for _, a := range addrs {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		reqs = append(reqs, proxy.Request{
			Path: "addon/912/networks/solana/tokens/" + a,
		})
	}

	results := s.deps.Coordinator.GetMany(r.Context(), reqs)
	writeJSON(w, http.StatusOK, results)
}
