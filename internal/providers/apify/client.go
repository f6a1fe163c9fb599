// Package apify provides the Apify actor API client backing the reference
// provider adapters. Discovery actors are invoked synchronously one page at a
// time; the client enforces the per-provider rate limit and hard call timeout
// but never retries, leaving attempt accounting to the retry controller.
package apify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/reperio/internal/providers"
)

const (
	// DefaultBaseURL is the base URL for the Apify API.
	DefaultBaseURL = "https://api.apify.com/v2"

	// DefaultTimeout is the default per-call HTTP timeout.
	DefaultTimeout = 60 * time.Second

	// DefaultRateLimit is the default rate limit (requests per second).
	DefaultRateLimit = 5
)

// Client is an Apify actor API client.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     arbor.ILogger
	limiter    *rate.Limiter
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets a logger.
func WithLogger(logger arbor.ILogger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets a custom rate limit.
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// WithTimeout sets the per-call HTTP timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient = &http.Client{Timeout: timeout}
	}
}

// NewClient creates a new Apify API client.
func NewClient(token string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// RunActorSync starts an actor run with the given input and decodes the
// resulting dataset items into result. One network call, no internal retry.
func (c *Client) RunActorSync(ctx context.Context, actorID string, input interface{}, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return &providers.RateLimitError{RetryAfter: time.Second}
	}

	body, err := json.Marshal(input)
	if err != nil {
		return fmt.Errorf("failed to marshal actor input: %w", err)
	}

	endpoint := fmt.Sprintf("/acts/%s/run-sync-get-dataset-items", url.PathEscape(actorID))
	params := url.Values{}
	params.Set("token", c.token)
	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, endpoint, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if c.logger != nil {
		c.logger.Debug().
			Str("actor_id", actorID).
			Msg("Apify actor request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	// Apify returns 201 for sync runs that produced a dataset.
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		if resp.StatusCode == http.StatusTooManyRequests {
			return &providers.RateLimitError{RetryAfter: retryAfter(resp)}
		}
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &providers.APIError{
			StatusCode: resp.StatusCode,
			Message:    string(respBody),
			Endpoint:   endpoint,
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode actor output: %w", err)
	}

	return nil
}

func retryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return time.Second
}
