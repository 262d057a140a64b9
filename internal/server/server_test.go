package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/zeralabs/qnoracle/internal/oracle"
	"github.com/zeralabs/qnoracle/internal/proxy"
	"github.com/zeralabs/qnoracle/internal/proxy/budget"
	"github.com/zeralabs/qnoracle/internal/proxy/clock"
	"github.com/zeralabs/qnoracle/internal/proxy/gate"
	"github.com/zeralabs/qnoracle/internal/proxy/l1"
	"github.com/zeralabs/qnoracle/internal/proxy/popularity"
	"github.com/zeralabs/qnoracle/internal/proxy/singleflight"
	"github.com/zeralabs/qnoracle/internal/proxy/upstream"
	"github.com/zeralabs/qnoracle/internal/server/adminauth"
	"github.com/zeralabs/qnoracle/internal/server/writelimit"
	"github.com/zeralabs/qnoracle/internal/storage"
)

// fakeUpstream serves one canned response for every path, recording every call
// it receives so tests can assert on pass-through behavior without a real
// HTTP server.
type fakeUpstream struct {
	calls     []string
	status    int
	body      []byte
	err       error
}

func (f *fakeUpstream) Get(_ context.Context, path string, _ []upstream.Param) (int, []byte, error) {
	f.calls = append(f.calls, path)
	if f.err != nil {
		return 0, nil, f.err
	}
	status := f.status
	if status == 0 {
		status = http.StatusOK
	}
	body := f.body
	if body == nil {
		body = []byte(`{"ok":true}`)
	}
	return status, body, nil
}

// newTestCoordinator builds a real *proxy.Coordinator over a fake upstream,
// with an L1-only cache tier (no L2) and a large budget so tests don't
// trip rate limiting unless they mean to.
func newTestCoordinator(t *testing.T, up *fakeUpstream) *proxy.Coordinator {
	t.Helper()
	l1c, err := l1.New(1000)
	if err != nil {
		t.Fatalf("l1.New: %v", err)
	}
	return proxy.New(proxy.Deps{
		L1:           l1c,
		Popularity:   popularity.New(),
		Budget:       budget.New(clock.System{}, 1000, time.Minute),
		Gate:         gate.New(10),
		SingleFlight: singleflight.New(),
		Upstream:     up,
		Clock:        clock.System{},
		TTLs:         proxy.TTLs{Hot: time.Minute, Warm: time.Minute, Cold: time.Minute},
		PopHot:       10,
		PopWarm:      5,
		MaxStale:     time.Minute,
	})
}

// fakeStore is an in-memory storage.Store for admin-API tests.
type fakeStore struct {
	prices  map[string]oracle.Price
	symbols []oracle.Symbol
	config  oracle.Config
	audit   []oracle.AuditEntry

	failGetConfig bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{prices: make(map[string]oracle.Price)}
}

func (s *fakeStore) GetAndTouch(context.Context, string, int64) (storage.HTTPCacheRow, bool, error) {
	return storage.HTTPCacheRow{}, false, nil
}
func (s *fakeStore) Upsert(context.Context, storage.HTTPCacheRow) error { return nil }
func (s *fakeStore) TopByPopularity(context.Context, int) ([]string, error) { return nil, nil }
func (s *fakeStore) SweepExpired(context.Context, int64, int64, int) (int, error) { return 0, nil }

func (s *fakeStore) ListPrices(context.Context) ([]oracle.Price, error) {
	out := make([]oracle.Price, 0, len(s.prices))
	for _, p := range s.prices {
		out = append(out, p)
	}
	return out, nil
}
func (s *fakeStore) GetPrice(_ context.Context, mint string) (oracle.Price, bool, error) {
	p, ok := s.prices[mint]
	return p, ok, nil
}
func (s *fakeStore) UpsertPrice(_ context.Context, p oracle.Price) error {
	s.prices[p.Mint] = p
	return nil
}
func (s *fakeStore) PatchPrice(_ context.Context, mint string, usd float64, updatedBy string) (oracle.Price, error) {
	p, ok := s.prices[mint]
	if !ok {
		return oracle.Price{}, oracle.ErrNotFound
	}
	p.USD = usd
	p.UpdatedBy = updatedBy
	s.prices[mint] = p
	return p, nil
}
func (s *fakeStore) DeletePrice(_ context.Context, mint string) error {
	delete(s.prices, mint)
	return nil
}

func (s *fakeStore) ListSymbols(context.Context) ([]oracle.Symbol, error) { return s.symbols, nil }
func (s *fakeStore) UpsertSymbol(_ context.Context, sym oracle.Symbol) error {
	s.symbols = append(s.symbols, sym)
	return nil
}

func (s *fakeStore) GetConfig(context.Context) (oracle.Config, error) {
	if s.failGetConfig {
		return oracle.Config{}, oracle.ErrStorage
	}
	return s.config, nil
}
func (s *fakeStore) UpdateConfig(_ context.Context, c oracle.Config) error {
	s.config = c
	return nil
}

func (s *fakeStore) InsertAudit(_ context.Context, e oracle.AuditEntry) error {
	s.audit = append(s.audit, e)
	return nil
}
func (s *fakeStore) ListAudit(_ context.Context, limit int, _ string) (oracle.AuditPage, error) {
	entries := s.audit
	if limit > 0 && limit < len(entries) {
		entries = entries[:limit]
	}
	return oracle.AuditPage{Entries: entries}, nil
}

func (s *fakeStore) Ping(context.Context) error { return nil }
func (s *fakeStore) Close() error               { return nil }

const testJWTSecret = "test-secret"

// newAdminToken issues a short-lived admin bearer token for test requests.
func newAdminToken(t *testing.T) string {
	t.Helper()
	issuer := adminauth.New(testJWTSecret, time.Hour)
	token, _, err := issuer.Issue("alice", "admin")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

// newTestHandler builds a handler with a working cache proxy and admin API,
// suitable as a base for most route tests.
func newTestHandler(t *testing.T, up *fakeUpstream, store storage.Store) http.Handler {
	t.Helper()
	return New(Deps{
		Coordinator:       newTestCoordinator(t, up),
		Store:             store,
		Auth:              adminauth.New(testJWTSecret, time.Hour),
		WriteLimiter:      writelimit.New(clock.System{}, 0),
		BootstrapUser:     "admin",
		BootstrapPassword: "hunter2",
	})
}

func TestHealthz(t *testing.T) {
	t.Parallel()
	h := newTestHandler(t, &fakeUpstream{}, newFakeStore())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if rec.Body.String() != "ok" {
		t.Errorf("body = %q, want %q", rec.Body.String(), "ok")
	}
}

func TestReadyz_NoCheckConfigured(t *testing.T) {
	t.Parallel()
	h := newTestHandler(t, &fakeUpstream{}, newFakeStore())

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestReadyz_FailingCheck(t *testing.T) {
	t.Parallel()
	h := New(Deps{
		Coordinator: newTestCoordinator(t, &fakeUpstream{}),
		ReadyCheck: func(context.Context) error {
			return oracle.ErrStorage
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

func TestRequestIDHeader(t *testing.T) {
	t.Parallel()
	h := newTestHandler(t, &fakeUpstream{}, newFakeStore())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Header().Get("X-Request-Id") == "" {
		t.Error("X-Request-Id header should be set")
	}
}

func TestSecurityHeaders(t *testing.T) {
	t.Parallel()
	h := newTestHandler(t, &fakeUpstream{}, newFakeStore())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("expected X-Content-Type-Options: nosniff")
	}
	if rec.Header().Get("X-Frame-Options") != "DENY" {
		t.Error("expected X-Frame-Options: DENY")
	}
}

func TestHandleToken_ProxiesUpstream(t *testing.T) {
	t.Parallel()
	up := &fakeUpstream{status: http.StatusOK, body: []byte(`{"mint":"abc"}`)}
	h := newTestHandler(t, up, newFakeStore())

	req := httptest.NewRequest(http.MethodGet, "/qn/addon/912/networks/solana/tokens/abc", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body = %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"mint":"abc"`) {
		t.Errorf("body = %s, want to contain mint", rec.Body.String())
	}
	if len(up.calls) != 1 || up.calls[0] != "addon/912/networks/solana/tokens/abc" {
		t.Errorf("upstream calls = %v, want one call to the token path", up.calls)
	}
}

func TestHandleToken_CachesSecondCall(t *testing.T) {
	t.Parallel()
	up := &fakeUpstream{}
	h := newTestHandler(t, up, newFakeStore())

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/qn/addon/912/networks/solana/tokens/abc", nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d", i, rec.Code)
		}
	}
	if len(up.calls) != 1 {
		t.Errorf("expected exactly one upstream call across two cached requests, got %d", len(up.calls))
	}
}

func TestHandleDexPools_ForwardsParamsAndURLParam(t *testing.T) {
	t.Parallel()
	up := &fakeUpstream{}
	h := newTestHandler(t, up, newFakeStore())

	req := httptest.NewRequest(http.MethodGet, "/qn/addon/912/networks/solana/dexes/raydium/pools?page=2&limit=10", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(up.calls) != 1 || up.calls[0] != "addon/912/networks/solana/dexes/raydium/pools" {
		t.Errorf("upstream calls = %v", up.calls)
	}
}

func TestHandleSearch(t *testing.T) {
	t.Parallel()
	up := &fakeUpstream{}
	h := newTestHandler(t, up, newFakeStore())

	req := httptest.NewRequest(http.MethodGet, "/qn/addon/912/search?query=sol", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(up.calls) != 1 || up.calls[0] != "addon/912/search" {
		t.Errorf("upstream calls = %v", up.calls)
	}
}

func TestHandleAggregate_EmptyAddresses(t *testing.T) {
	t.Parallel()
	h := newTestHandler(t, &fakeUpstream{}, newFakeStore())

	req := httptest.NewRequest(http.MethodGet, "/qn/tokens", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("body = %q, want []", rec.Body.String())
	}
}

func TestHandleAggregate_FansOutPerAddress(t *testing.T) {
	t.Parallel()
	up := &fakeUpstream{}
	h := newTestHandler(t, up, newFakeStore())

	req := httptest.NewRequest(http.MethodGet, "/qn/tokens?addresses=a,b,c", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body = %s", rec.Code, rec.Body.String())
	}
	if len(up.calls) != 3 {
		t.Errorf("expected 3 upstream calls, got %d: %v", len(up.calls), up.calls)
	}
}

func TestProxyGet_UpstreamErrorMapsToStatus(t *testing.T) {
	t.Parallel()
	up := &fakeUpstream{err: oracle.ErrUpstreamUnavailable}
	h := newTestHandler(t, up, newFakeStore())

	req := httptest.NewRequest(http.MethodGet, "/qn/addon/912/networks/solana/tokens/abc", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
}

func TestAdminAPI_NotMountedWithoutStore(t *testing.T) {
	t.Parallel()
	h := New(Deps{Coordinator: newTestCoordinator(t, &fakeUpstream{})})

	req := httptest.NewRequest(http.MethodGet, "/admin/v1/prices", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestDirectPrice_Disabled(t *testing.T) {
	t.Parallel()
	h := newTestHandler(t, &fakeUpstream{}, newFakeStore())

	req := httptest.NewRequest(http.MethodGet, "/v1/price/abc", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d (route unmounted without a Peg client)", rec.Code, http.StatusNotFound)
	}
}

func TestAdminPage_Served(t *testing.T) {
	t.Parallel()
	h := newTestHandler(t, &fakeUpstream{}, newFakeStore())

	req := httptest.NewRequest(http.MethodGet, "/admin/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q, want text/html prefix", ct)
	}
}

var _ = newAdminToken // no test in this package calls newAdminToken
