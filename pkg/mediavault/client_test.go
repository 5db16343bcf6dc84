package mediavault

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, Client) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient("svc-token", WithBaseURL(srv.URL))
	return srv, c
}

func TestResolve(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/media/med-123/url", r.URL.Path)
		assert.Equal(t, "video", r.URL.Query().Get("type"))
		assert.Equal(t, "Bearer svc-token", r.Header.Get("Authorization"))

		w.Write([]byte(`{
			"media_id": "med-123",
			"signed_url": "https://cdn.veriscope.io/med-123?sig=abc",
			"expires_at": "2025-06-01T12:00:00Z"
		}`))
	})

	got, err := c.Resolve(context.Background(), "med-123", "video")
	require.NoError(t, err)
	assert.Equal(t, "med-123", got.MediaID)
	assert.Equal(t, "https://cdn.veriscope.io/med-123?sig=abc", got.SignedURL)
	assert.Equal(t, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), got.ExpiresAt)
}

func TestResolveEscapesMediaID(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/media/med%2F..%2Fetc/url", r.URL.EscapedPath())
		w.Write([]byte(`{"media_id":"med/../etc","signed_url":"https://cdn.test/x","expires_at":"2025-06-01T12:00:00Z"}`))
	})

	_, err := c.Resolve(context.Background(), "med/../etc", "photo")
	require.NoError(t, err)
}

func TestResolveNotFound(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"unknown media id"}`))
	})

	_, err := c.Resolve(context.Background(), "missing", "photo")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 404, apiErr.StatusCode)
}

func TestIsNotFoundOtherErrors(t *testing.T) {
	t.Parallel()
	assert.False(t, IsNotFound(nil))
	assert.False(t, IsNotFound(assert.AnError))
	assert.False(t, IsNotFound(&APIError{StatusCode: 500}))
}

func TestResolveServerError(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`upstream unavailable`))
	})

	_, err := c.Resolve(context.Background(), "med-123", "video")
	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 502, apiErr.StatusCode)
	assert.False(t, IsNotFound(err))
}

func TestResolveMalformedJSON(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{not json`))
	})

	_, err := c.Resolve(context.Background(), "med-123", "video")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode response")
}

func TestResolveContextCancellation(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("request should have been cancelled")
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Resolve(ctx, "med-123", "video")
	require.Error(t, err)
}

func TestAPIError_Error(t *testing.T) {
	t.Parallel()
	e := &APIError{StatusCode: 404, Body: `{"error":"unknown media id"}`}
	assert.Equal(t, `mediavault: HTTP 404: {"error":"unknown media id"}`, e.Error())
}

func TestWithTimeout(t *testing.T) {
	t.Parallel()
	c := NewClient("svc-token", WithTimeout(3*time.Second)).(*httpClient)
	assert.Equal(t, 3*time.Second, c.http.Timeout)

	// Zero and negative values keep the default.
	c = NewClient("svc-token", WithTimeout(0)).(*httpClient)
	assert.Equal(t, 10*time.Second, c.http.Timeout)
}
