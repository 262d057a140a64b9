// Package storage defines persistence interfaces for the oracle.
package storage

import (
	"context"

	"github.com/zeralabs/qnoracle/internal/oracle"
)

// HTTPCacheRow is a single persisted L2 cache row.
type HTTPCacheRow struct {
	CacheKey     string
	Status       int
	Body         string
	StoredAt     int64
	ExpiresAt    int64
	Popularity   float64
	LastAccessed int64
}

// HTTPCacheStore manages the durable L2 cache tier.
type HTTPCacheStore interface {
	// GetAndTouch reads a row by key and bumps its popularity and
	// last_accessed to now; implementations need not make the read and the
	// bump atomic. Returns ok=false on miss; errors
	// are treated as miss by the caller (see oracle.ErrStorage).
	GetAndTouch(ctx context.Context, key string, now int64) (row HTTPCacheRow, ok bool, err error)
	// Upsert writes or overwrites a row.
	Upsert(ctx context.Context, row HTTPCacheRow) error
	// TopByPopularity returns up to k cache keys ordered by popularity DESC.
	TopByPopularity(ctx context.Context, k int) ([]string, error)
	// SweepExpired deletes up to maxDelete rows whose stale-while-revalidate
	// grace window has elapsed (expires_at + maxStale < now), returning the
	// number removed.
	SweepExpired(ctx context.Context, now int64, maxStale int64, maxDelete int) (int, error)
}

// PriceStore manages curated price persistence.
type PriceStore interface {
	ListPrices(ctx context.Context) ([]oracle.Price, error)
	GetPrice(ctx context.Context, mint string) (oracle.Price, bool, error)
	UpsertPrice(ctx context.Context, p oracle.Price) error
	PatchPrice(ctx context.Context, mint string, usd float64, updatedBy string) (oracle.Price, error)
	DeletePrice(ctx context.Context, mint string) error
}

// SymbolStore manages symbol-to-mint lookups.
type SymbolStore interface {
	ListSymbols(ctx context.Context) ([]oracle.Symbol, error)
	UpsertSymbol(ctx context.Context, s oracle.Symbol) error
}

// ConfigStore manages operator-tunable settings persisted in the config table.
type ConfigStore interface {
	GetConfig(ctx context.Context) (oracle.Config, error)
	UpdateConfig(ctx context.Context, c oracle.Config) error
}

// AuditStore manages the admin write audit log.
type AuditStore interface {
	InsertAudit(ctx context.Context, e oracle.AuditEntry) error
	ListAudit(ctx context.Context, limit int, cursor string) (oracle.AuditPage, error)
}

// Store combines all storage interfaces backed by the durable tier.
type Store interface {
	HTTPCacheStore
	PriceStore
	SymbolStore
	ConfigStore
	AuditStore
	Ping(ctx context.Context) error
	Close() error
}
