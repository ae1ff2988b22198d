// Package envirofacts is a client for the EPA Envirofacts service, built
// around reconstructing complete tables from an API that caps every response
// at 10,000 rows and offers no multi-value filtering of its own.
package envirofacts

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"runtime"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/tri-cli/internal/resilience"
)

// DefaultBaseURL is the public Envirofacts REST endpoint.
const DefaultBaseURL = "https://data.epa.gov/efservice"

// APIError is a non-2xx response from the Envirofacts service. It is never
// retried; transient network failures are retried by the client's policy.
type APIError struct {
	StatusCode int
	URL        string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("envirofacts: http %d from %s", e.StatusCode, e.URL)
}

// Client issues requests against an Envirofacts endpoint with retry on
// transient network failures. Non-2xx responses surface as *APIError.
type Client struct {
	baseURL    string
	httpClient *http.Client
	retry      resilience.Policy
	limiter    *rate.Limiter
	poolSize   int
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the Envirofacts endpoint.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRetries sets the total attempt count for transient failures.
func WithRetries(n int) Option {
	return func(c *Client) { c.retry.MaxAttempts = n }
}

// WithRateLimit sets the requests-per-second cap applied across all fetches,
// including parallel window fan-out.
func WithRateLimit(rps float64) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(rps), int(rps)) }
}

// WithPoolSize sets the parallel window-fetch worker count.
func WithPoolSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.poolSize = n
		}
	}
}

// NewClient creates an Envirofacts client with the given options.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		retry:      resilience.DefaultPolicy(),
		limiter:    rate.NewLimiter(10, 10),
		poolSize:   defaultPoolSize(),
	}
	c.retry.OnRetry = resilience.RetryLogger("envirofacts", "get")
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// defaultPoolSize leaves a small margin of cores free for the caller.
func defaultPoolSize() int {
	n := runtime.NumCPU() - 2
	if n < 1 {
		n = 1
	}
	return n
}

// get fetches the URL, retrying transient network failures under the client's
// policy. The body is returned fully read.
func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	return resilience.DoVal(ctx, c.retry, func(ctx context.Context) ([]byte, error) {
		return c.getOnce(ctx, url)
	})
}

func (c *Client) getOnce(ctx context.Context, url string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "envirofacts: rate limiter wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, eris.Wrap(err, "envirofacts: build request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Network-level failures are the transient class; the policy
		// predicate recognizes them without extra wrapping.
		return nil, eris.Wrap(err, "envirofacts: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{StatusCode: resp.StatusCode, URL: url}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "envirofacts: read body")
	}
	return body, nil
}
