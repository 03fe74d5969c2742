// Package supabase provides a read client for Supabase (PostgREST).
// Used as the data backend for assets, liabilities and ledger transactions.
package supabase

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/boddenberg/pf-balances-bfa/internal/domain"
	"github.com/boddenberg/pf-balances-bfa/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("supabase")

// DefaultPageSize matches PostgREST's default max-rows on Supabase.
const DefaultPageSize = 1000

// Client wraps HTTP calls to Supabase PostgREST API.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	apiKey         string
	serviceRoleKey string
	pageSize       int
	cb             *gobreaker.CircuitBreaker
	cfg            resilience.Config
	logger         *zap.Logger
}

// NewClient creates a Supabase client. pageSize <= 0 uses DefaultPageSize.
func NewClient(httpClient *http.Client, baseURL, apiKey, serviceRoleKey string, pageSize int, cb *gobreaker.CircuitBreaker, cfg resilience.Config, logger *zap.Logger) *Client {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Client{
		httpClient:     httpClient,
		baseURL:        strings.TrimRight(baseURL, "/"),
		apiKey:         apiKey,
		serviceRoleKey: serviceRoleKey,
		pageSize:       pageSize,
		cb:             cb,
		cfg:            cfg,
		logger:         logger,
	}
}

// doRequest executes an authenticated request to Supabase PostgREST.
// 4xx responses are permanent (not retried); 404/204 mean no data.
func (c *Client) doRequest(ctx context.Context, method, path string) ([]byte, error) {
	url := fmt.Sprintf("%s/rest/v1/%s", c.baseURL, path)
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, resilience.Permanent(err)
	}

	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.serviceRoleKey))
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("supabase: request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read supabase response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusNoContent {
		return nil, nil // no data
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("supabase: non-2xx response",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)),
		)
		statusErr := fmt.Errorf("supabase returned status %d: %s", resp.StatusCode, string(body))
		if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, resilience.Permanent(statusErr)
		}
		return nil, statusErr
	}

	c.logger.Debug("supabase: request OK",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
	)

	return body, nil
}

// getWithRetry runs one GET through the breaker and the retry loop.
func (c *Client) getWithRetry(ctx context.Context, service, path string) ([]byte, error) {
	result, err := c.cb.Execute(func() (any, error) {
		var body []byte
		err := resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			b, err := c.doRequest(ctx, http.MethodGet, path)
			body = b
			return err
		})
		return body, err
	})
	if err != nil {
		if resilience.IsOpen(err) {
			return nil, &domain.ErrExternalService{Service: service, Err: &domain.ErrCircuitOpen{Service: service}}
		}
		return nil, &domain.ErrExternalService{Service: service, Err: err}
	}
	body, _ := result.([]byte)
	return body, nil
}

// fetchAll pages through a PostgREST collection with limit/offset until a
// short page is returned. decode turns one page into rows and reports how
// many rows it held.
func (c *Client) fetchAll(ctx context.Context, service, path string, decode func([]byte) (int, error)) error {
	sep := "&"
	if !strings.Contains(path, "?") {
		sep = "?"
	}
	for offset := 0; ; offset += c.pageSize {
		paged := fmt.Sprintf("%s%slimit=%d&offset=%d", path, sep, c.pageSize, offset)
		body, err := c.getWithRetry(ctx, service, paged)
		if err != nil {
			return err
		}
		if len(body) == 0 {
			return nil
		}
		n, err := decode(body)
		if err != nil {
			return &domain.ErrExternalService{Service: service, Err: err}
		}
		if n < c.pageSize {
			return nil
		}
	}
}

// Ping checks that PostgREST answers. Used by /healthz.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.doRequest(ctx, http.MethodGet, "assets?select=id&limit=1")
	return err
}
