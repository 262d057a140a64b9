package sqlite

import (
	"context"
	"time"

	"github.com/zeralabs/qnoracle/internal/oracle"
)

// InsertAudit records a single admin write.
func (s *Store) InsertAudit(ctx context.Context, e oracle.AuditEntry) error {
	_, err := s.write.ExecContext(ctx,
		`INSERT INTO audit (id, subject, action, target, detail, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.Subject, e.Action, e.Target, e.Detail, e.CreatedAt.UTC().Format(time.RFC3339),
	)
	return err
}

// ListAudit returns up to limit entries newest-first, using id as a
// keyset cursor (entries are inserted with monotonically sortable UUIDv7
// IDs, so ordering by id DESC matches insertion order without relying on
// timestamp precision).
func (s *Store) ListAudit(ctx context.Context, limit int, cursor string) (oracle.AuditPage, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	var rows interface {
		Next() bool
		Scan(dest ...any) error
		Err() error
		Close() error
	}
	var err error
	if cursor == "" {
		rows, err = s.read.QueryContext(ctx,
			`SELECT id, subject, action, target, detail, created_at
			 FROM audit ORDER BY id DESC LIMIT ?`, limit+1)
	} else {
		rows, err = s.read.QueryContext(ctx,
			`SELECT id, subject, action, target, detail, created_at
			 FROM audit WHERE id < ? ORDER BY id DESC LIMIT ?`, cursor, limit+1)
	}
	if err != nil {
		return oracle.AuditPage{}, err
	}
	defer rows.Close()

	var entries []oracle.AuditEntry
	for rows.Next() {
		var e oracle.AuditEntry
		var createdAt string
		if err := rows.Scan(&e.ID, &e.Subject, &e.Action, &e.Target, &e.Detail, &createdAt); err != nil {
			return oracle.AuditPage{}, err
		}
		t, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return oracle.AuditPage{}, err
		}
		e.CreatedAt = t
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return oracle.AuditPage{}, err
	}

	page := oracle.AuditPage{Entries: entries}
	if len(entries) > limit {
		page.Entries = entries[:limit]
		page.NextCursor = entries[limit-1].ID
	}
	return page, nil
}
