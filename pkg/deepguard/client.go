// Package deepguard provides a minimal client for the DeepGuard detection API.
//
// DeepGuard scores face-swap, deepfake, and synthetic-media probabilities per
// submission. Confidence and face count are optional in the wire format and
// stay nil when the provider omits them. Calls are throttled client-side to
// stay under DeepGuard's per-key rate limit.
package deepguard

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Default base URL for the DeepGuard v2 API.
const defaultBaseURL = "https://api.deepguard.io"

// Client defines the DeepGuard API operations.
type Client interface {
	Detect(ctx context.Context, req DetectRequest) (*DetectResponse, error)
}

// DetectRequest is the body for POST /v2/detect.
type DetectRequest struct {
	MediaURL  string `json:"media_url"`
	MediaType string `json:"media_type"`
}

// DetectResponse is the response from POST /v2/detect.
type DetectResponse struct {
	DetectionID string   `json:"detection_id"`
	Scores      Scores   `json:"scores"`
	Confidence  *float64 `json:"confidence"`
	FacesFound  *int     `json:"faces_found"`

	// Raw holds the verbatim response body for audit storage.
	Raw json.RawMessage `json:"-"`
}

// Scores groups the per-category probabilities, each in [0, 1].
type Scores struct {
	FaceSwap       float64 `json:"face_swap"`
	Deepfake       float64 `json:"deepfake"`
	SyntheticMedia float64 `json:"synthetic_media"`
}

// APIError is returned when DeepGuard responds with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("deepguard: HTTP %d: %s", e.StatusCode, e.Body)
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

// WithRateLimit overrides the default request rate (4 req/s). A zero or
// negative rps disables throttling.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		} else {
			c.limiter = nil
		}
	}
}

// httpClient implements Client using net/http.
type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a new DeepGuard client. By default, calls are throttled
// to 4 req/s.
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
		limiter: rate.NewLimiter(4, 4),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// wait blocks until the rate limiter allows one event, or ctx is cancelled.
func (c *httpClient) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

func (c *httpClient) Detect(ctx context.Context, req DetectRequest) (*DetectResponse, error) {
	if err := c.wait(ctx); err != nil {
		return nil, eris.Wrap(err, "deepguard: rate limit")
	}

	var resp DetectResponse
	raw, err := c.post(ctx, "/v2/detect", req, &resp)
	if err != nil {
		return nil, eris.Wrap(err, "deepguard: detect")
	}
	resp.Raw = raw
	return &resp, nil
}

func (c *httpClient) post(ctx context.Context, path string, body any, out any) (json.RawMessage, error) {
	buf, err := json.Marshal(body)
	if err != nil {
		return nil, eris.Wrap(err, "marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return nil, eris.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)

	return c.do(req, out)
}

func (c *httpClient) do(req *http.Request, out any) (json.RawMessage, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "execute request")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Body:       string(data),
		}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return nil, eris.Wrap(err, "decode response")
	}

	return data, nil
}
