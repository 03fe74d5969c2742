// Package rates acquires exchange-rate snapshots: a live HTTP provider, a
// static approximate table, and an Acquirer that falls back from one to the
// other through a cache.
package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/boddenberg/pf-balances-bfa/internal/domain"
	"github.com/boddenberg/pf-balances-bfa/internal/infra/resilience"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
)

var tracer = otel.Tracer("rates")

// maxBody caps the provider response we are willing to read.
const maxBody = 1 << 20

// HTTPProvider fetches live rates from GET {baseURL}/{BASE}.
// Each call is a single attempt: no retry, fail fast when throttled or when
// the breaker is open.
type HTTPProvider struct {
	httpClient *http.Client
	baseURL    string
	cb         *gobreaker.CircuitBreaker
	limiter    *rate.Limiter
	now        func() time.Time
}

// NewHTTPProvider creates a provider. A nil limiter means unlimited.
func NewHTTPProvider(httpClient *http.Client, baseURL string, cb *gobreaker.CircuitBreaker, limiter *rate.Limiter) *HTTPProvider {
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 0)
	}
	return &HTTPProvider{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		cb:         cb,
		limiter:    limiter,
		now:        time.Now,
	}
}

type latestResponse struct {
	Base  string                     `json:"base"`
	Rates map[string]decimal.Decimal `json:"rates"`
}

// Latest implements port.RateProvider.
func (p *HTTPProvider) Latest(ctx context.Context, base string) (domain.RateSnapshot, error) {
	ctx, span := tracer.Start(ctx, "HTTPProvider.Latest")
	defer span.End()
	base = domain.NormalizeCurrency(base)
	span.SetAttributes(attribute.String("rates.base", base))

	if !p.limiter.Allow() {
		return domain.RateSnapshot{}, &domain.ErrRateUnavailable{Base: base, Reason: "rate limited"}
	}

	result, err := p.cb.Execute(func() (any, error) {
		return p.fetch(ctx, base)
	})
	if err != nil {
		if resilience.IsOpen(err) {
			return domain.RateSnapshot{}, &domain.ErrRateUnavailable{Base: base, Reason: "circuit open", Err: &domain.ErrCircuitOpen{Service: "rates"}}
		}
		return domain.RateSnapshot{}, err
	}
	return result.(domain.RateSnapshot), nil
}

func (p *HTTPProvider) fetch(ctx context.Context, base string) (domain.RateSnapshot, error) {
	url := fmt.Sprintf("%s/%s", p.baseURL, base)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.RateSnapshot{}, &domain.ErrRateUnavailable{Base: base, Reason: "build request", Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return domain.RateSnapshot{}, &domain.ErrRateUnavailable{Base: base, Reason: "request failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.RateSnapshot{}, &domain.ErrRateUnavailable{Base: base, Reason: fmt.Sprintf("status %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return domain.RateSnapshot{}, &domain.ErrRateUnavailable{Base: base, Reason: "read body", Err: err}
	}

	var payload latestResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return domain.RateSnapshot{}, &domain.ErrRateUnavailable{Base: base, Reason: "decode body", Err: err}
	}
	if len(payload.Rates) == 0 {
		return domain.RateSnapshot{}, &domain.ErrRateUnavailable{Base: base, Reason: "empty rates"}
	}
	if payload.Base != "" && domain.NormalizeCurrency(payload.Base) != base {
		return domain.RateSnapshot{}, &domain.ErrRateUnavailable{Base: base, Reason: fmt.Sprintf("provider answered for %s", payload.Base)}
	}

	rates := make(map[string]decimal.Decimal, len(payload.Rates))
	for code, r := range payload.Rates {
		if r.IsPositive() {
			rates[domain.NormalizeCurrency(code)] = r
		}
	}

	return domain.RateSnapshot{
		Base:      base,
		Rates:     rates,
		FetchedAt: p.now().UTC(),
		Source:    domain.RateSourceLive,
	}, nil
}
