package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type directPriceResponse struct {
	Mint string  `json:"mint"`
	USD  float64 `json:"usd"`
}

// handleDirectPrice serves GET /v1/price/{mint}: a single uncached call to
// the peg-source RPC, independent of the L1/L2 cache path -- it is a
// direct lookup, not a proxied pass-through.
func (s *Server) handleDirectPrice(w http.ResponseWriter, r *http.Request) {
	if s.deps.Peg == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse("peg source not configured"))
		return
	}
	mint := chi.URLParam(r, "mint")
	usd, ok, err := s.deps.Peg.FetchUSD(r.Context(), mint)
	if err != nil {
		writeJSON(w, errorStatus(err), errorResponse(err.Error()))
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse("no price available for mint"))
		return
	}
	writeJSON(w, http.StatusOK, directPriceResponse{Mint: mint, USD: usd})
}
