package sqlite

import (
	"context"

	"github.com/zeralabs/qnoracle/internal/oracle"
)

// ListSymbols returns all symbol-to-mint mappings ordered by symbol.
func (s *Store) ListSymbols(ctx context.Context) ([]oracle.Symbol, error) {
	rows, err := s.read.QueryContext(ctx, `SELECT symbol, mint FROM symbols ORDER BY symbol`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []oracle.Symbol
	for rows.Next() {
		var sym oracle.Symbol
		if err := rows.Scan(&sym.Symbol, &sym.Mint); err != nil {
			return nil, err
		}
		out = append(out, sym)
	}
	return out, rows.Err()
}

// UpsertSymbol writes or overwrites a symbol-to-mint mapping.
func (s *Store) UpsertSymbol(ctx context.Context, sym oracle.Symbol) error {
	_, err := s.write.ExecContext(ctx,
		`INSERT INTO symbols (symbol, mint) VALUES (?, ?)
		 ON CONFLICT(symbol) DO UPDATE SET mint = excluded.mint`,
		sym.Symbol, sym.Mint,
	)
	return err
}
