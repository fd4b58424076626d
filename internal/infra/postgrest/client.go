// Package postgrest provides a LedgerStore backed by a PostgREST API
// (Supabase or self-hosted). Each collection maps to one table whose
// columns match the records' JSON field names, plus a bigserial "seq"
// column that preserves insertion order.
package postgrest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/boddenberg/agent-ledger-go/internal/domain"
	"github.com/boddenberg/agent-ledger-go/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("postgrest")

// Client wraps HTTP calls to the PostgREST API.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	apiKey         string
	serviceRoleKey string
	cb             *gobreaker.CircuitBreaker
	cfg            resilience.Config
	bulkhead       *resilience.Bulkhead
	logger         *zap.Logger
}

// NewClient creates a PostgREST client. baseURL is the project URL; requests
// go to baseURL/rest/v1/<table>.
func NewClient(httpClient *http.Client, baseURL, apiKey, serviceRoleKey string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, logger *zap.Logger) *Client {
	return &Client{
		httpClient:     httpClient,
		baseURL:        baseURL,
		apiKey:         apiKey,
		serviceRoleKey: serviceRoleKey,
		cb:             cb,
		cfg:            cfg,
		bulkhead:       resilience.NewBulkhead(cfg.MaxConcurrency),
		logger:         logger,
	}
}

// statusError is a non-2xx response.
type statusError struct {
	Status int
	Body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("postgrest returned status %d: %s", e.Status, e.Body)
}

// call runs one request through the circuit breaker and retry policy.
// Client errors (4xx) are not retried.
func (c *Client) call(ctx context.Context, service, method, path string, payload any, prefer string) ([]byte, error) {
	var body []byte

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			b, err := c.doRequest(ctx, method, path, payload, prefer)
			if err != nil {
				var se *statusError
				if errors.As(err, &se) && se.Status < 500 {
					return resilience.Permanent(err)
				}
				return err
			}
			body = b
			return nil
		})
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, &domain.ErrCircuitOpen{Service: service}
	}
	if err != nil {
		return nil, &domain.ErrExternalService{Service: service, Err: err}
	}
	return body, nil
}

// doRequest executes an authenticated request to PostgREST.
func (c *Client) doRequest(ctx context.Context, method, path string, payload any, prefer string) ([]byte, error) {
	if err := c.bulkhead.Acquire(ctx); err != nil {
		return nil, err
	}
	defer c.bulkhead.Release()

	var reader io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, resilience.Permanent(fmt.Errorf("encode %s body: %w", path, err))
		}
		reader = bytes.NewReader(encoded)
	}

	url := fmt.Sprintf("%s/rest/v1/%s", c.baseURL, path)
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		c.logger.Error("postgrest: failed to create request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, resilience.Permanent(err)
	}

	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.serviceRoleKey))
	req.Header.Set("Content-Type", "application/json")
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("postgrest: request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("postgrest: non-2xx response",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)),
		)
		return nil, &statusError{Status: resp.StatusCode, Body: string(body)}
	}

	c.logger.Debug("postgrest: request OK",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
	)
	return body, nil
}
