package rates

import (
	"github.com/boddenberg/pf-balances-bfa/internal/domain"

	"github.com/shopspring/decimal"
)

// staticUSD holds approximate units-per-USD used when no live or cached
// snapshot is available.
var staticUSD = map[string]string{
	"USD": "1",
	"AUD": "1.52",
	"CAD": "1.36",
	"CHF": "0.88",
	"CNY": "7.24",
	"EUR": "0.92",
	"GBP": "0.79",
	"HKD": "7.82",
	"INR": "83.12",
	"JPY": "149.50",
	"NZD": "1.65",
	"SGD": "1.34",
}

// Static returns the approximate table re-based to base. When base is not in
// the table the USD table is returned as is.
func Static(base string) domain.RateSnapshot {
	base = domain.NormalizeCurrency(base)

	usd := make(map[string]decimal.Decimal, len(staticUSD))
	for code, s := range staticUSD {
		usd[code] = decimal.RequireFromString(s)
	}

	pivot, ok := usd[base]
	if !ok {
		return domain.RateSnapshot{Base: "USD", Rates: usd, Source: domain.RateSourceStatic}
	}

	rebased := make(map[string]decimal.Decimal, len(usd))
	for code, r := range usd {
		if code == base {
			rebased[code] = decimal.NewFromInt(1)
			continue
		}
		rebased[code] = r.Div(pivot)
	}
	return domain.RateSnapshot{Base: base, Rates: rebased, Source: domain.RateSourceStatic}
}
