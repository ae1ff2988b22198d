// Package geocode resolves facility addresses to coordinates through the
// Nominatim geocoder, with a fixed-spacing rate limit, bounded retry on
// service unavailability, and progressive address relaxation.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/tri-cli/internal/resilience"
)

// DefaultBaseURL is the public Nominatim search endpoint.
const DefaultBaseURL = "https://nominatim.openstreetmap.org/search"

// defaultUserAgent identifies the toolkit per Nominatim's usage policy.
const defaultUserAgent = "tri-cli/1.0"

// Result holds the geocoding output for a query.
type Result struct {
	Latitude  float64
	Longitude float64
	Matched   bool
	Query     string // the query variant that produced the match
}

// Client geocodes free-text queries against a Nominatim endpoint. A single
// client enforces minimum spacing between its own calls; concurrently
// constructed clients do not coordinate.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	limiter     *rate.Limiter
	maxAttempts int
	userAgent   string
}

// Option configures the geocoding client.
type Option func(*Client)

// WithBaseURL overrides the Nominatim endpoint.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithMaxAttempts bounds the retry loop for service-unavailable responses.
func WithMaxAttempts(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// WithRateLimit overrides the requests-per-second cap. The default honors
// Nominatim's one-request-per-second policy.
func WithRateLimit(rps float64) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(rps), 1) }
}

// WithUserAgent sets the User-Agent header sent to the geocoder.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// NewClient creates a geocoding client with the given options.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:     DefaultBaseURL,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		limiter:     rate.NewLimiter(rate.Every(time.Second), 1),
		maxAttempts: 5,
		userAgent:   defaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// unavailableError marks a service-unavailable response from the geocoder.
type unavailableError struct {
	statusCode int
}

func (e *unavailableError) Error() string {
	return fmt.Sprintf("geocode: service unavailable (http %d)", e.statusCode)
}

// nominatimPlace is one entry of a Nominatim jsonv2 response. Coordinates
// arrive as strings.
type nominatimPlace struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// Geocode resolves a free-text query. Unavailable responses are retried in a
// bounded loop spaced by the rate limiter; when attempts run out the query
// degrades to an unmatched result with a warning, never an error. Genuine
// network faults that outlive the retries propagate.
func (c *Client) Geocode(ctx context.Context, query string) (*Result, error) {
	policy := resilience.Policy{
		MaxAttempts: c.maxAttempts,
		ShouldRetry: func(err error) bool {
			var ue *unavailableError
			return errors.As(err, &ue) || resilience.IsTransient(err)
		},
		OnRetry: resilience.RetryLogger("nominatim", "geocode"),
	}

	result, err := resilience.DoVal(ctx, policy, func(ctx context.Context) (*Result, error) {
		return c.geocodeOnce(ctx, query)
	})
	if err != nil {
		var ue *unavailableError
		if errors.As(err, &ue) {
			zap.L().Warn("geocoder retries exhausted",
				zap.String("query", query),
				zap.Int("attempts", c.maxAttempts),
			)
			return &Result{Matched: false, Query: query}, nil
		}
		return nil, err
	}
	return result, nil
}

func (c *Client) geocodeOnce(ctx context.Context, query string) (*Result, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "geocode: rate limiter wait")
	}

	params := url.Values{
		"q":      {query},
		"format": {"jsonv2"},
		"limit":  {"1"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: build request")
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resilience.IsTransientHTTPStatus(resp.StatusCode) {
		return nil, &unavailableError{statusCode: resp.StatusCode}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("geocode: http %d from geocoder", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: read body")
	}

	var places []nominatimPlace
	if err := json.Unmarshal(body, &places); err != nil {
		return nil, eris.Wrap(err, "geocode: parse response")
	}
	if len(places) == 0 {
		return &Result{Matched: false, Query: query}, nil
	}

	lat, err := strconv.ParseFloat(places[0].Lat, 64)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: parse latitude")
	}
	lon, err := strconv.ParseFloat(places[0].Lon, 64)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: parse longitude")
	}

	return &Result{Latitude: lat, Longitude: lon, Matched: true, Query: query}, nil
}
