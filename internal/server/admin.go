package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/zeralabs/qnoracle/internal/oracle"
	"github.com/zeralabs/qnoracle/internal/server/broadcast"
)

// maxAdminBody is the maximum allowed admin request body size (1 MB).
const maxAdminBody = 1 << 20

// decodeJSON limits body size, decodes JSON into v, and writes a 400 on
// error. Returns true if decoding succeeded.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxAdminBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse("invalid request body"))
		return false
	}
	return true
}

// writeAdminError writes a status derived from the shared error taxonomy to
// the client, logging the full error server-side when that status is 500.
func writeAdminError(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		slog.LogAttrs(r.Context(), slog.LevelError, "admin error", slog.String("error", err.Error()))
	}
	writeJSON(w, status, errorResponse(err.Error()))
}

// audit records an admin write and broadcasts it to SSE subscribers. Audit
// write failures are logged and swallowed -- they must never fail the
// caller's request, which has already been persisted successfully.
func (s *Server) audit(r *http.Request, action, target, detail string) {
	identity := oracle.IdentityFromContext(r.Context())
	subject := ""
	if identity != nil {
		subject = identity.Subject
	}
	entry := oracle.AuditEntry{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Subject:   subject,
		Action:    action,
		Target:    target,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.deps.Store.InsertAudit(r.Context(), entry); err != nil {
		slog.LogAttrs(r.Context(), slog.LevelError, "audit insert failed", slog.String("error", err.Error()))
	}
	if s.deps.Broadcast != nil {
		s.deps.Broadcast.Publish(broadcast.Event{Type: action, Target: target, Detail: entry})
	}
}

// --- Login ---

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// handleLogin issues a JWT for the configured bootstrap admin credentials.
// There is no user table; the oracle has a single operator identity.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Username == "" || req.Username != s.deps.BootstrapUser || req.Password != s.deps.BootstrapPassword {
		writeJSON(w, http.StatusUnauthorized, errorResponse("invalid credentials"))
		return
	}
	token, expiresAt, err := s.deps.Auth.Issue(req.Username, "admin")
	if err != nil {
		writeAdminError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: token, ExpiresAt: expiresAt})
}

// --- Prices ---

func (s *Server) handleListPrices(w http.ResponseWriter, r *http.Request) {
	prices, err := s.deps.Store.ListPrices(r.Context())
	if err != nil {
		writeAdminError(w, r, err)
		return
	}
	if prices == nil {
		prices = []oracle.Price{}
	}
	writeJSON(w, http.StatusOK, prices)
}

func (s *Server) handleGetPrice(w http.ResponseWriter, r *http.Request) {
	mint := chi.URLParam(r, "mint")
	p, ok, err := s.deps.Store.GetPrice(r.Context(), mint)
	if err != nil {
		writeAdminError(w, r, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse("price not found"))
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleCreatePrice(w http.ResponseWriter, r *http.Request) {
	var p oracle.Price
	if !decodeJSON(w, r, &p) {
		return
	}
	if p.Mint == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse("mint is required"))
		return
	}
	identity := oracle.IdentityFromContext(r.Context())
	p.UpdatedBy = identity.Subject
	p.UpdatedAt = time.Now().UTC()
	if err := s.deps.Store.UpsertPrice(r.Context(), p); err != nil {
		writeAdminError(w, r, err)
		return
	}
	s.audit(r, "price.upsert", p.Mint, "")
	w.Header()["Location"] = []string{"/admin/v1/prices/" + p.Mint}
	writeJSON(w, http.StatusCreated, p)
}

type patchPriceRequest struct {
	USD float64 `json:"usd"`
}

func (s *Server) handlePatchPrice(w http.ResponseWriter, r *http.Request) {
	mint := chi.URLParam(r, "mint")
	var req patchPriceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	identity := oracle.IdentityFromContext(r.Context())
	p, err := s.deps.Store.PatchPrice(r.Context(), mint, req.USD, identity.Subject)
	if err != nil {
		writeAdminError(w, r, err)
		return
	}
	s.audit(r, "price.patch", mint, "")
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleDeletePrice(w http.ResponseWriter, r *http.Request) {
	mint := chi.URLParam(r, "mint")
	if err := s.deps.Store.DeletePrice(r.Context(), mint); err != nil {
		writeAdminError(w, r, err)
		return
	}
	s.audit(r, "price.delete", mint, "")
	w.WriteHeader(http.StatusNoContent)
}

// --- Symbols ---

func (s *Server) handleListSymbols(w http.ResponseWriter, r *http.Request) {
	symbols, err := s.deps.Store.ListSymbols(r.Context())
	if err != nil {
		writeAdminError(w, r, err)
		return
	}
	if symbols == nil {
		symbols = []oracle.Symbol{}
	}
	writeJSON(w, http.StatusOK, symbols)
}

func (s *Server) handleCreateSymbol(w http.ResponseWriter, r *http.Request) {
	var sym oracle.Symbol
	if !decodeJSON(w, r, &sym) {
		return
	}
	if sym.Symbol == "" || sym.Mint == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse("symbol and mint are required"))
		return
	}
	if err := s.deps.Store.UpsertSymbol(r.Context(), sym); err != nil {
		writeAdminError(w, r, err)
		return
	}
	s.audit(r, "symbol.upsert", sym.Symbol, sym.Mint)
	writeJSON(w, http.StatusCreated, sym)
}

// --- Config ---

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.deps.Store.GetConfig(r.Context())
	if err != nil {
		writeAdminError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handlePatchConfig(w http.ResponseWriter, r *http.Request) {
	var cfg oracle.Config
	if !decodeJSON(w, r, &cfg) {
		return
	}
	if err := s.deps.Store.UpdateConfig(r.Context(), cfg); err != nil {
		writeAdminError(w, r, err)
		return
	}
	s.audit(r, "config.update", "config", "")
	writeJSON(w, http.StatusOK, cfg)
}

// --- Audit ---

func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	cursor := r.URL.Query().Get("cursor")
	page, err := s.deps.Store.ListAudit(r.Context(), limit, cursor)
	if err != nil {
		writeAdminError(w, r, err)
		return
	}
	if page.Entries == nil {
		page.Entries = []oracle.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, page)
}

// --- SSE ---

// handleSSE streams admin-write events to a subscriber as they're published.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, errorResponse("streaming unsupported"))
		return
	}
	if s.deps.Broadcast == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse("event stream disabled"))
		return
	}

	events, unsubscribe := s.deps.Broadcast.Subscribe()
	defer unsubscribe()

	writeSSEHeaders(w)
	flusher.Flush()

	ctx := r.Context()
	keepAlive := time.NewTicker(15 * time.Second)
	defer keepAlive.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-keepAlive.C:
			writeSSEKeepAlive(w)
			flusher.Flush()
		case ev, ok := <-events:
			if !ok {
				writeSSEDone(w)
				flusher.Flush()
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				writeSSEError(w, err.Error())
				flusher.Flush()
				continue
			}
			writeSSEData(w, data)
			flusher.Flush()
		}
	}
}
