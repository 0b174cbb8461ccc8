package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/vadiminshakov/treasury/internal/metrics"
)

const defaultRequestTimeout = 15 * time.Second

// HTTPClient is a JSON REST client bound to a single upstream source.
type HTTPClient struct {
	source  string
	client  *resty.Client
	limiter *Limiter
}

// HTTPOption configures HTTPClient.
type HTTPOption func(*HTTPClient)

// WithTimeout overrides the request timeout.
func WithTimeout(d time.Duration) HTTPOption {
	return func(c *HTTPClient) {
		if d > 0 {
			c.client.SetTimeout(d)
		}
	}
}

// WithHeader sets a header sent with every request.
func WithHeader(key, value string) HTTPOption {
	return func(c *HTTPClient) {
		if value != "" {
			c.client.SetHeader(key, value)
		}
	}
}

// WithRateLimit applies a client side token bucket.
func WithRateLimit(rps float64, burst int) HTTPOption {
	return func(c *HTTPClient) {
		c.limiter = NewLimiter(c.source, rps, burst)
	}
}

// NewHTTPClient creates a JSON client. baseURL may be empty when callers pass absolute URLs.
func NewHTTPClient(source, baseURL string, opts ...HTTPOption) *HTTPClient {
	r := resty.New().
		SetTimeout(defaultRequestTimeout).
		SetHeader("Accept", "application/json")
	if baseURL != "" {
		r.SetBaseURL(strings.TrimRight(baseURL, "/"))
	}

	c := &HTTPClient{source: source, client: r}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Source returns the upstream name used in logs and metrics.
func (c *HTTPClient) Source() string {
	return c.source
}

// GetJSON performs GET and decodes the body into out.
func (c *HTTPClient) GetJSON(ctx context.Context, path string, query map[string]string, out any) error {
	req := c.client.R().SetContext(ctx)
	if len(query) > 0 {
		req.SetQueryParams(query)
	}

	return c.do(ctx, req, "GET", path, out)
}

// PostJSON sends body as JSON and decodes the response into out.
func (c *HTTPClient) PostJSON(ctx context.Context, path string, body, out any) error {
	req := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body)

	return c.do(ctx, req, "POST", path, out)
}

func (c *HTTPClient) do(ctx context.Context, req *resty.Request, method, path string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return errors.Wrapf(err, "%s rate limiter", c.source)
	}

	start := time.Now()
	resp, err := req.Execute(method, path)
	metrics.UpstreamLatency.WithLabelValues(c.source).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues(c.source, ClassifyError(err)).Inc()
		return errors.Wrapf(err, "%s %s", method, c.source)
	}

	if resp.IsError() {
		err = fmt.Errorf("%s responded with status %d", c.source, resp.StatusCode())
		metrics.UpstreamRequestsTotal.WithLabelValues(c.source, ClassifyError(err)).Inc()
		return err
	}
	metrics.UpstreamRequestsTotal.WithLabelValues(c.source, "ok").Inc()

	if out == nil {
		return nil
	}

	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return errors.Wrapf(err, "decode %s response", c.source)
	}

	return nil
}

// ClassifyError maps an upstream error to a coarse status class.
func ClassifyError(err error) string {
	if err == nil {
		return "ok"
	}

	lower := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lower, "timeout") || strings.Contains(lower, "deadline exceeded"):
		return "timeout"
	case strings.Contains(lower, "429") || strings.Contains(lower, "rate limit") || strings.Contains(lower, "too many requests"):
		return "rate_limited"
	case strings.Contains(lower, "status 5"):
		return "server_error"
	case strings.Contains(lower, "connection refused") || strings.Contains(lower, "connection reset") ||
		strings.Contains(lower, "no such host") || strings.Contains(lower, "eof"):
		return "network_error"
	default:
		return "client_error"
	}
}
