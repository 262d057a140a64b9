package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/zeralabs/qnoracle/internal/storage"
)

// GetAndTouch reads the row for key, then applies the popularity bump
// (p <- min(cap, p*0.95 + 1.0)) and last_accessed update in a second
// UPDATE statement. The read and the update are not atomic; concurrent
// touches can race harmlessly on the bump.
func (s *Store) GetAndTouch(ctx context.Context, key string, now int64) (storage.HTTPCacheRow, bool, error) {
	var row storage.HTTPCacheRow
	row.CacheKey = key
	err := s.read.QueryRowContext(ctx,
		`SELECT status, body, stored_at, expires_at, popularity, last_accessed
		 FROM http_cache WHERE cache_key = ?`, key,
	).Scan(&row.Status, &row.Body, &row.StoredAt, &row.ExpiresAt, &row.Popularity, &row.LastAccessed)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.HTTPCacheRow{}, false, nil
	}
	if err != nil {
		return storage.HTTPCacheRow{}, false, err
	}

	newPop := row.Popularity*0.95 + 1.0
	if newPop > 1_000_000 {
		newPop = 1_000_000
	}
	_, err = s.write.ExecContext(ctx,
		`UPDATE http_cache SET popularity = ?, last_accessed = ? WHERE cache_key = ?`,
		newPop, now, key,
	)
	if err != nil {
		return storage.HTTPCacheRow{}, false, err
	}
	row.Popularity = newPop
	row.LastAccessed = now
	return row, true, nil
}

// Upsert writes or overwrites a row.
func (s *Store) Upsert(ctx context.Context, row storage.HTTPCacheRow) error {
	_, err := s.write.ExecContext(ctx,
		`INSERT INTO http_cache (cache_key, status, body, stored_at, expires_at, popularity, last_accessed)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(cache_key) DO UPDATE SET
		   status = excluded.status, body = excluded.body,
		   stored_at = excluded.stored_at, expires_at = excluded.expires_at,
		   popularity = excluded.popularity, last_accessed = excluded.last_accessed`,
		row.CacheKey, row.Status, row.Body, row.StoredAt, row.ExpiresAt, row.Popularity, row.LastAccessed,
	)
	return err
}

// TopByPopularity returns up to k cache keys ordered by popularity DESC.
func (s *Store) TopByPopularity(ctx context.Context, k int) ([]string, error) {
	rows, err := s.read.QueryContext(ctx,
		`SELECT cache_key FROM http_cache ORDER BY popularity DESC LIMIT ?`, k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// SweepExpired deletes up to maxDelete rows whose stale-while-revalidate
// grace window has elapsed: expires_at + maxStale < now. A row within its
// grace window is left alone even though it is already expired, so a
// stale-while-revalidate read can still serve it.
func (s *Store) SweepExpired(ctx context.Context, now int64, maxStale int64, maxDelete int) (int, error) {
	res, err := s.write.ExecContext(ctx,
		`DELETE FROM http_cache WHERE cache_key IN (
		   SELECT cache_key FROM http_cache WHERE expires_at + ? < ? LIMIT ?
		 )`, maxStale, now, maxDelete,
	)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}
