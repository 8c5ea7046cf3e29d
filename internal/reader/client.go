package reader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/avast/retry-go/v4"
)

// DefaultTimeout is the standard timeout for stats API requests.
const DefaultTimeout = 30 * time.Second

const retryAttempts = 3

// APIError is returned when the Reader API answers with a non-2xx status.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (HTTP %d): %s", e.StatusCode, e.Message)
}

// Client is the HTTP wrapper around the Reader stats REST API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        *slog.Logger
}

// Option is a functional option for configuring the client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the request timeout on the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// NewClient creates a Reader API client.
func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		log: slog.Default().With("component", "reader-client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetStats fetches the user's main statistics document.
func (c *Client) GetStats(ctx context.Context, userID string) (*Stats, error) {
	raw, err := c.getJSON(ctx, "api/stats", map[string]string{"userId": userID})
	if err != nil {
		return nil, err
	}
	return normalizeStats(raw)
}

// GetRecentQuotes fetches up to limit most recent quotes.
func (c *Client) GetRecentQuotes(ctx context.Context, userID string, limit int) ([]Quote, error) {
	raw, err := c.getJSON(ctx, "api/quotes/recent", map[string]string{
		"userId": userID,
		"limit":  strconv.Itoa(limit),
	})
	if err != nil {
		return nil, err
	}
	return normalizeQuotes(raw)
}

// GetQuotes fetches quotes matching the query.
func (c *Client) GetQuotes(ctx context.Context, userID string, q QuoteQuery) ([]Quote, error) {
	params := map[string]string{"userId": userID}
	if q.Limit > 0 {
		params["limit"] = strconv.Itoa(q.Limit)
	}
	if q.FavoritesOnly {
		params["favorites"] = "true"
	}
	raw, err := c.getJSON(ctx, "api/quotes", params)
	if err != nil {
		return nil, err
	}
	return normalizeQuotes(raw)
}

// GetActivityPercent fetches the user's activity percentile.
func (c *Client) GetActivityPercent(ctx context.Context, userID string) (int, error) {
	raw, err := c.getJSON(ctx, "api/stats/activity", map[string]string{"userId": userID})
	if err != nil {
		return 0, err
	}
	return normalizeActivityPercent(raw)
}

// GetTopBooks fetches the user's top source books.
func (c *Client) GetTopBooks(ctx context.Context, userID string, limit int) ([]TopBook, error) {
	raw, err := c.getJSON(ctx, "api/books/top", map[string]string{
		"userId": userID,
		"limit":  strconv.Itoa(limit),
	})
	if err != nil {
		return nil, err
	}
	return normalizeTopBooks(raw)
}

// getJSON performs a GET request and returns the raw JSON payload.
// Connection errors and HTTP 5xx/429 responses are retried with back-off;
// other client errors fail immediately. The cache layer above never
// retries, so this is the only place transient transport noise is
// absorbed.
func (c *Client) getJSON(ctx context.Context, endpoint string, params map[string]string) (json.RawMessage, error) {
	urlStr := fmt.Sprintf("%s/%s", c.baseURL, endpoint)
	if len(params) > 0 {
		q := url.Values{}
		for k, v := range params {
			q.Set(k, v)
		}
		urlStr = fmt.Sprintf("%s?%s", urlStr, q.Encode())
	}

	var payload json.RawMessage
	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
			if err != nil {
				return err
			}
			req.Header.Set("Accept", "application/json")
			if c.apiKey != "" {
				req.Header.Set("X-API-Key", c.apiKey)
			}

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return fmt.Errorf("failed to read response body: %w", err)
			}

			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				return &APIError{
					StatusCode: resp.StatusCode,
					Message:    string(body),
				}
			}

			payload = body
			return nil
		},
		retry.Attempts(retryAttempts),
		retry.Delay(200*time.Millisecond),
		retry.MaxDelay(2*time.Second),
		retry.DelayType(retry.BackOffDelay),
		retry.Context(ctx),
		retry.RetryIf(isRetryable),
		retry.OnRetry(func(n uint, err error) {
			c.log.DebugContext(ctx, "retrying API request",
				"endpoint", endpoint, "attempt", n+1, "err", err)
		}),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("GET %s failed: %w", endpoint, err)
	}
	return payload, nil
}

// isRetryable reports whether an error is worth retrying: connection-level
// failures and 5xx/429 responses. 4xx responses (other than 429) are the
// caller's problem.
func isRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500 || apiErr.StatusCode == http.StatusTooManyRequests
	}
	return true
}
