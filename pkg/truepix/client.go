// Package truepix provides a minimal client for the TruePix detection API.
//
// TruePix runs two independent models per submission (AI-generation and
// deepfake) and reports a probability per model. Absent models are left nil
// so callers can tell "model did not run" apart from "model scored zero".
package truepix

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

// Default base URL for the TruePix v1 API.
const defaultBaseURL = "https://api.truepix.ai"

// Client defines the TruePix API operations.
type Client interface {
	Analyze(ctx context.Context, req AnalyzeRequest) (*AnalyzeResponse, error)
}

// AnalyzeRequest is the body for POST /v1/analyze.
type AnalyzeRequest struct {
	URL       string   `json:"url"`
	MediaType string   `json:"media_type"`
	Models    []string `json:"models,omitempty"`
}

// AnalyzeResponse is the response from POST /v1/analyze.
type AnalyzeResponse struct {
	RequestID string       `json:"request_id"`
	Results   ModelResults `json:"results"`

	// Raw holds the verbatim response body for audit storage.
	Raw json.RawMessage `json:"-"`
}

// ModelResults groups the per-model outputs. A nil entry means the model
// was not run for this submission.
type ModelResults struct {
	AIGenerated *ModelResult `json:"ai_generated"`
	Deepfake    *ModelResult `json:"deepfake"`
}

// ModelResult is a single model's output.
type ModelResult struct {
	Probability  float64 `json:"probability"`
	ModelVersion string  `json:"model_version"`
}

// APIError is returned when TruePix responds with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("truepix: HTTP %d: %s", e.StatusCode, e.Body)
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

// httpClient implements Client using net/http.
type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a new TruePix client.
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
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Analyze(ctx context.Context, req AnalyzeRequest) (*AnalyzeResponse, error) {
	var resp AnalyzeResponse
	raw, err := c.post(ctx, "/v1/analyze", req, &resp)
	if err != nil {
		return nil, eris.Wrap(err, "truepix: analyze")
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
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

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
