// Package mediavault provides a client for the MediaVault storage service,
// which resolves stored media IDs to short-lived signed download URLs.
package mediavault

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
)

// Default base URL for the MediaVault v1 API.
const defaultBaseURL = "https://vault.veriscope.internal"

// Client defines the MediaVault operations.
type Client interface {
	// Resolve returns a signed download URL for a stored media object.
	Resolve(ctx context.Context, mediaID, mediaType string) (*SignedMedia, error)
}

// SignedMedia is the response from GET /v1/media/{id}/url.
type SignedMedia struct {
	MediaID   string    `json:"media_id"`
	SignedURL string    `json:"signed_url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// APIError is returned when MediaVault responds with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("mediavault: HTTP %d: %s", e.StatusCode, e.Body)
}

// IsNotFound reports whether err is a MediaVault 404 for an unknown media ID.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
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

// WithTimeout overrides the default 10s request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// httpClient implements Client using net/http.
type httpClient struct {
	serviceToken string
	baseURL      string
	http         *http.Client
}

// NewClient creates a new MediaVault client authenticated with a service token.
func NewClient(serviceToken string, opts ...Option) Client {
	c := &httpClient{
		serviceToken: serviceToken,
		baseURL:      defaultBaseURL,
		http: &http.Client{
			Timeout: 10 * time.Second,
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

func (c *httpClient) Resolve(ctx context.Context, mediaID, mediaType string) (*SignedMedia, error) {
	path := fmt.Sprintf("/v1/media/%s/url?type=%s", url.PathEscape(mediaID), url.QueryEscape(mediaType))

	var resp SignedMedia
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("mediavault: resolve %s", mediaID))
	}
	return &resp, nil
}

func (c *httpClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return eris.Wrap(err, "create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.serviceToken)
	req.Header.Set("Accept", "application/json")

	return c.do(req, out)
}

func (c *httpClient) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "execute request")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{
			StatusCode: resp.StatusCode,
			Body:       string(data),
		}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return eris.Wrap(err, "decode response")
	}

	return nil
}
