package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/zeralabs/qnoracle/internal/oracle"
)

// ListPrices returns all curated prices ordered by mint.
func (s *Store) ListPrices(ctx context.Context) ([]oracle.Price, error) {
	rows, err := s.read.QueryContext(ctx,
		`SELECT mint, symbol, usd, updated_at, updated_by FROM prices ORDER BY mint`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []oracle.Price
	for rows.Next() {
		p, err := scanPrice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetPrice returns the curated price for mint, if any.
func (s *Store) GetPrice(ctx context.Context, mint string) (oracle.Price, bool, error) {
	row := s.read.QueryRowContext(ctx,
		`SELECT mint, symbol, usd, updated_at, updated_by FROM prices WHERE mint = ?`, mint)
	p, err := scanPrice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return oracle.Price{}, false, nil
	}
	if err != nil {
		return oracle.Price{}, false, err
	}
	return p, true, nil
}

// UpsertPrice writes or overwrites a curated price.
func (s *Store) UpsertPrice(ctx context.Context, p oracle.Price) error {
	_, err := s.write.ExecContext(ctx,
		`INSERT INTO prices (mint, symbol, usd, updated_at, updated_by)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(mint) DO UPDATE SET
		   symbol = excluded.symbol, usd = excluded.usd,
		   updated_at = excluded.updated_at, updated_by = excluded.updated_by`,
		p.Mint, p.Symbol, p.USD, p.UpdatedAt.UTC().Format(time.RFC3339), p.UpdatedBy,
	)
	return err
}

// PatchPrice updates only the USD value of an existing price, stamping the
// new updated_at/updated_by, and returns the updated row.
func (s *Store) PatchPrice(ctx context.Context, mint string, usd float64, updatedBy string) (oracle.Price, error) {
	now := time.Now().UTC()
	res, err := s.write.ExecContext(ctx,
		`UPDATE prices SET usd = ?, updated_at = ?, updated_by = ? WHERE mint = ?`,
		usd, now.Format(time.RFC3339), updatedBy, mint,
	)
	if err != nil {
		return oracle.Price{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return oracle.Price{}, err
	}
	if n == 0 {
		return oracle.Price{}, oracle.ErrNotFound
	}
	p, _, err := s.GetPrice(ctx, mint)
	return p, err
}

// DeletePrice removes the curated price for mint.
func (s *Store) DeletePrice(ctx context.Context, mint string) error {
	res, err := s.write.ExecContext(ctx, `DELETE FROM prices WHERE mint = ?`, mint)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return oracle.ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPrice(row scanner) (oracle.Price, error) {
	var p oracle.Price
	var updatedAt string
	if err := row.Scan(&p.Mint, &p.Symbol, &p.USD, &updatedAt, &p.UpdatedBy); err != nil {
		return oracle.Price{}, err
	}
	t, err := time.Parse(time.RFC3339, updatedAt)
	if err != nil {
		return oracle.Price{}, err
	}
	p.UpdatedAt = t
	return p, nil
}
