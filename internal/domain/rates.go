package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Exchange rates
// ============================================================

// RateSource tells where a snapshot came from.
type RateSource string

const (
	RateSourceLive   RateSource = "live"
	RateSourceCache  RateSource = "cache"
	RateSourceStatic RateSource = "static"
)

// RateSnapshot maps currency codes to units-per-base. The base currency itself
// has an implicit rate of 1 whether or not it appears in Rates.
type RateSnapshot struct {
	Base      string                     `json:"base"`
	Rates     map[string]decimal.Decimal `json:"rates"`
	FetchedAt time.Time                  `json:"fetched_at"`
	Source    RateSource                 `json:"source"`
}

// Rate returns the rate for code relative to the snapshot base.
func (s RateSnapshot) Rate(code string) (decimal.Decimal, bool) {
	code = NormalizeCurrency(code)
	if code == NormalizeCurrency(s.Base) {
		return decimal.NewFromInt(1), true
	}
	r, ok := s.Rates[code]
	if !ok || !r.IsPositive() {
		return decimal.Zero, false
	}
	return r, true
}

// FreshAt reports whether the snapshot is no older than window at now.
func (s RateSnapshot) FreshAt(now time.Time, window time.Duration) bool {
	if s.FetchedAt.IsZero() {
		return false
	}
	return now.Sub(s.FetchedAt) <= window
}

// WithSource returns a copy of the snapshot tagged with src.
func (s RateSnapshot) WithSource(src RateSource) RateSnapshot {
	s.Source = src
	return s
}
