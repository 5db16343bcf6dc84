// Package ganscan provides a client for the GanScan detection API.
//
// GanScan reports integer scores in [0, 100] for deepfake, GAN, diffusion,
// and frame-level manipulation, plus the names of the generator models it
// matched. The API sheds load aggressively, so calls retry transient
// failures with exponential backoff before giving up.
package ganscan

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

// Default base URL for the GanScan v1 API.
const defaultBaseURL = "https://api.ganscan.dev"

// Client defines the GanScan API operations.
type Client interface {
	Scan(ctx context.Context, req ScanRequest) (*ScanResponse, error)
}

// ScanRequest is the body for POST /api/v1/scan.
type ScanRequest struct {
	TargetURL string `json:"target_url"`
	Kind      string `json:"kind"`
}

// ScanResponse is the response from POST /api/v1/scan. Scores are integers
// in [0, 100]. Confidence is nil when GanScan does not report one.
type ScanResponse struct {
	ScanID            string `json:"scan_id"`
	DeepfakeScore     int    `json:"deepfake_score"`
	GANScore          int    `json:"gan_score"`
	DiffusionScore    int    `json:"diffusion_score"`
	ManipulationScore int    `json:"manipulation_score"`
	GANModel          string `json:"gan_model,omitempty"`
	DiffusionModel    string `json:"diffusion_model,omitempty"`
	Confidence        *int   `json:"confidence"`

	// Raw holds the verbatim response body for audit storage.
	Raw json.RawMessage `json:"-"`
}

// APIError is returned when GanScan responds with a non-2xx status after
// retries are exhausted.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ganscan: HTTP %d: %s", e.StatusCode, e.Body)
}

// Option configures the httpClient.
type Option func(*httpClient)

// WithBaseURL overrides the default base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithMaxRetries sets how many times a call is retried after the first
// attempt (default 2). Zero disables retries.
func WithMaxRetries(n int) Option {
	return func(c *httpClient) {
		if n >= 0 {
			c.maxAttempts = n + 1
		}
	}
}

// WithRetryBackoff overrides the initial backoff between attempts
// (default 1s, doubling per attempt).
func WithRetryBackoff(d time.Duration) Option {
	return func(c *httpClient) {
		if d > 0 {
			c.backoff = d
		}
	}
}

// httpClient implements Client using net/http.
type httpClient struct {
	apiKey      string
	baseURL     string
	http        *http.Client
	maxAttempts int
	backoff     time.Duration
}

// NewClient creates a new GanScan client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		maxAttempts: 3,
		backoff:     1 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// retryableStatusCode returns true if the HTTP status code should trigger a retry.
func retryableStatusCode(code int) bool {
	return code == http.StatusTooManyRequests ||
		code == http.StatusInternalServerError ||
		code == http.StatusBadGateway ||
		code == http.StatusServiceUnavailable
}

func (c *httpClient) Scan(ctx context.Context, req ScanRequest) (*ScanResponse, error) {
	buf, err := json.Marshal(req)
	if err != nil {
		return nil, eris.Wrap(err, "ganscan: marshal request")
	}

	body, statusCode, err := c.retryPost(ctx, "/api/v1/scan", buf)
	if err != nil {
		return nil, eris.Wrap(err, "ganscan: scan")
	}

	if statusCode < 200 || statusCode >= 300 {
		return nil, &APIError{
			StatusCode: statusCode,
			Body:       string(body),
		}
	}

	var resp ScanResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, eris.Wrap(err, "ganscan: decode response")
	}
	resp.Raw = body
	return &resp, nil
}

// retryPost executes a POST with exponential backoff retries on transient
// failures (429, 500, 502, 503). The request is rebuilt from payload on each
// attempt so the body can be re-sent. Returns the response body and status
// code of the final attempt, or the last transport error after exhausting
// retries.
func (c *httpClient) retryPost(ctx context.Context, path string, payload []byte) ([]byte, int, error) {
	backoff := c.backoff

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return nil, 0, eris.Wrap(err, "create request")
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			if attempt < c.maxAttempts {
				select {
				case <-ctx.Done():
					return nil, 0, ctx.Err()
				case <-time.After(backoff):
				}
				backoff *= 2
				continue
			}
			return nil, 0, lastErr
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return nil, resp.StatusCode, eris.Wrap(readErr, "read response body")
		}

		if retryableStatusCode(resp.StatusCode) && attempt < c.maxAttempts {
			lastErr = eris.Errorf("status %d: %s", resp.StatusCode, string(body))
			select {
			case <-ctx.Done():
				return nil, 0, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			continue
		}

		return body, resp.StatusCode, nil
	}

	return nil, 0, lastErr
}
