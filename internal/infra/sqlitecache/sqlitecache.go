// Package sqlitecache is a durable RateCache backed by a local SQLite file,
// so the last good snapshot survives restarts.
package sqlitecache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/boddenberg/pf-balances-bfa/internal/domain"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS rate_snapshots (
	base       TEXT PRIMARY KEY,
	rates      TEXT NOT NULL,
	fetched_at TEXT NOT NULL
);`

// Store persists one snapshot per base currency.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open opens (or creates) the cache database at path and applies the schema.
func Open(path string, logger *zap.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open rate cache %s: %w", path, err)
	}
	// One writer at a time; SQLite serializes writes anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate rate cache: %w", err)
	}

	logger.Info("rate cache opened", zap.String("path", path))
	return &Store{db: db, logger: logger}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the snapshot stored for base.
func (s *Store) Get(ctx context.Context, base string) (domain.RateSnapshot, bool, error) {
	base = domain.NormalizeCurrency(base)

	var ratesJSON, fetchedAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT rates, fetched_at FROM rate_snapshots WHERE base = ?`, base,
	).Scan(&ratesJSON, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.RateSnapshot{}, false, nil
	}
	if err != nil {
		return domain.RateSnapshot{}, false, fmt.Errorf("read rate cache: %w", err)
	}

	var rates map[string]decimal.Decimal
	if err := json.Unmarshal([]byte(ratesJSON), &rates); err != nil {
		return domain.RateSnapshot{}, false, fmt.Errorf("decode cached rates for %s: %w", base, err)
	}
	ts, err := time.Parse(time.RFC3339Nano, fetchedAt)
	if err != nil {
		return domain.RateSnapshot{}, false, fmt.Errorf("decode cached timestamp for %s: %w", base, err)
	}

	return domain.RateSnapshot{
		Base:      base,
		Rates:     rates,
		FetchedAt: ts,
		Source:    domain.RateSourceCache,
	}, true, nil
}

// Put upserts snap; the latest write wins.
func (s *Store) Put(ctx context.Context, snap domain.RateSnapshot) error {
	ratesJSON, err := json.Marshal(snap.Rates)
	if err != nil {
		return fmt.Errorf("encode rates: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO rate_snapshots (base, rates, fetched_at) VALUES (?, ?, ?)
		ON CONFLICT(base) DO UPDATE SET rates = excluded.rates, fetched_at = excluded.fetched_at`,
		domain.NormalizeCurrency(snap.Base), string(ratesJSON), snap.FetchedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("write rate cache: %w", err)
	}

	s.logger.Debug("rate cache updated",
		zap.String("base", snap.Base),
		zap.Int("currencies", len(snap.Rates)),
	)
	return nil
}
