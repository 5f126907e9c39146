// Package http provides a JSON client guarded by a circuit breaker. Only
// idempotent reads are retried; writes are attempted once.
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"mev_engine/pkg/telemetry"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// APIError represents an API error response
type APIError struct {
	StatusCode int
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error: status=%d body=%s", e.StatusCode, string(e.Body))
}

// Options tune the resilience policies
type Options struct {
	Timeout          time.Duration
	MaxRetries       int
	RetryBackoff     time.Duration
	MaxRetryBackoff  time.Duration
	FailureThreshold uint
	BreakerDelay     time.Duration
}

func DefaultOptions() Options {
	return Options{
		Timeout:          5 * time.Second,
		MaxRetries:       3,
		RetryBackoff:     100 * time.Millisecond,
		MaxRetryBackoff:  2 * time.Second,
		FailureThreshold: 5,
		BreakerDelay:     10 * time.Second,
	}
}

// Client is a wrapper around http.Client with resilience
type Client struct {
	client  *http.Client
	baseURL string
	name    string
	breaker circuitbreaker.CircuitBreaker[*http.Response]
	reads   failsafe.Executor[*http.Response]
	writes  failsafe.Executor[*http.Response]

	tracer  trace.Tracer
	metrics *telemetry.MetricsHolder
}

// NewClient creates a client; name labels its spans and metrics
func NewClient(name, baseURL string, opts Options) *Client {
	retryPolicy := retrypolicy.NewBuilder[*http.Response]().
		HandleIf(func(resp *http.Response, err error) bool {
			if err != nil {
				return true
			}
			return resp.StatusCode >= 500 || resp.StatusCode == 429
		}).
		WithBackoff(opts.RetryBackoff, opts.MaxRetryBackoff).
		WithMaxRetries(opts.MaxRetries).
		Build()

	breaker := circuitbreaker.NewBuilder[*http.Response]().
		HandleIf(func(resp *http.Response, err error) bool {
			if err != nil {
				return true
			}
			return resp.StatusCode >= 500
		}).
		WithFailureThreshold(opts.FailureThreshold).
		WithDelay(opts.BreakerDelay).
		Build()

	return &Client{
		client:  &http.Client{Timeout: opts.Timeout},
		baseURL: baseURL,
		name:    name,
		breaker: breaker,
		reads:   failsafe.With[*http.Response](retryPolicy, breaker),
		writes:  failsafe.With[*http.Response](breaker),
		tracer:  telemetry.GetTracer("http-client"),
		metrics: telemetry.GetGlobalMetrics(),
	}
}

// BreakerOpen reports whether calls are currently being rejected
func (c *Client) BreakerOpen() bool {
	return c.breaker.IsOpen()
}

// GetJSON sends a GET request and decodes the response into out
func (c *Client) GetJSON(ctx context.Context, path string, params map[string]string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	q := req.URL.Query()
	for k, v := range params {
		q.Add(k, v)
	}
	req.URL.RawQuery = q.Encode()

	body, err := c.do(req, c.reads)
	if err != nil {
		return err
	}
	return decode(body, out)
}

// PostJSON sends body as JSON and decodes the response into out when out is non-nil
func (c *Client) PostJSON(ctx context.Context, path string, body, out interface{}) error {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal body: %w", err)
		}
		bodyReader = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	respBody, err := c.do(req, c.writes)
	if err != nil {
		return err
	}
	return decode(respBody, out)
}

func decode(body []byte, out interface{}) error {
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) do(req *http.Request, pipeline failsafe.Executor[*http.Response]) ([]byte, error) {
	start := time.Now()
	ctx := req.Context()

	ctx, span := c.tracer.Start(ctx, fmt.Sprintf("%s %s", req.Method, req.URL.Path),
		trace.WithAttributes(
			attribute.String("http.method", req.Method),
			attribute.String("http.url", req.URL.String()),
			attribute.String("venue", c.name),
		),
	)
	defer span.End()

	req = req.WithContext(ctx)

	resp, err := pipeline.GetWithExecution(func(exec failsafe.Execution[*http.Response]) (*http.Response, error) {
		return c.client.Do(req)
	})

	c.metrics.RecordVenueLatency(ctx, c.name, req.URL.Path, float64(time.Since(start).Microseconds())/1000)
	c.metrics.SetCircuitBreakerOpen(c.name, c.breaker.IsOpen())

	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Body:       body,
		}
	}

	return body, nil
}
