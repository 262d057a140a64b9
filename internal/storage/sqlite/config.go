package sqlite

import (
	"context"
	"strconv"

	"github.com/zeralabs/qnoracle/internal/oracle"
)

var configDefaults = oracle.Config{
	PegPollIntervalS: 30,
	WriteLimitPerMin: 60,
}

// GetConfig reads the operator-tunable config, falling back to defaults for
// any key never written.
func (s *Store) GetConfig(ctx context.Context) (oracle.Config, error) {
	cfg := configDefaults
	rows, err := s.read.QueryContext(ctx, `SELECT key, value FROM config`)
	if err != nil {
		return oracle.Config{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return oracle.Config{}, err
		}
		switch key {
		case "peg_source_url":
			cfg.PegSourceURL = value
		case "peg_poll_interval_s":
			if n, err := strconv.Atoi(value); err == nil {
				cfg.PegPollIntervalS = n
			}
		case "write_limit_per_min":
			if n, err := strconv.Atoi(value); err == nil {
				cfg.WriteLimitPerMin = n
			}
		}
	}
	return cfg, rows.Err()
}

// UpdateConfig writes each field of c as a config row.
func (s *Store) UpdateConfig(ctx context.Context, c oracle.Config) error {
	tx, err := s.write.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	kv := map[string]string{
		"peg_source_url":      c.PegSourceURL,
		"peg_poll_interval_s": strconv.Itoa(c.PegPollIntervalS),
		"write_limit_per_min": strconv.Itoa(c.WriteLimitPerMin),
	}
	for key, value := range kv {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO config (key, value) VALUES (?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
			key, value,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}
