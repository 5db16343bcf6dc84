package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veriscope/authenticity-engine/internal/manifest"
	"github.com/veriscope/authenticity-engine/internal/model"
	"github.com/veriscope/authenticity-engine/pkg/mediavault"
)

// stubResolver returns a canned signed URL and records resolved ids.
type stubResolver struct {
	mu       sync.Mutex
	resolved []string
	err      error
}

func (s *stubResolver) Resolve(_ context.Context, mediaID, _ string) (*mediavault.SignedMedia, error) {
	s.mu.Lock()
	s.resolved = append(s.resolved, mediaID)
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return &mediavault.SignedMedia{
		MediaID:   mediaID,
		SignedURL: "https://vault.test/signed/" + mediaID,
	}, nil
}

func makeItems(n int) []manifest.Item {
	items := make([]manifest.Item, n)
	for i := range items {
		items[i] = manifest.Item{
			MediaID:   fmt.Sprintf("vid-%d", i),
			MediaType: model.MediaTypeVideo,
			MediaURL:  fmt.Sprintf("https://cdn.test/vid-%d.mp4", i),
		}
	}
	return items
}

func TestProcessManifest_Empty(t *testing.T) {
	err := processManifest(context.Background(), nil, 0, 2, nil, func(_ context.Context, _ model.MediaRef) error {
		t.Fatal("analyze should not be called for an empty manifest")
		return nil
	})
	require.NoError(t, err)
}

func TestProcessManifest_AllSucceed(t *testing.T) {
	var count atomic.Int64

	err := processManifest(context.Background(), makeItems(3), 0, 2, nil, func(_ context.Context, ref model.MediaRef) error {
		require.NotEmpty(t, ref.LocatorURL)
		count.Add(1)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), count.Load())
}

func TestProcessManifest_FailuresAreAbsorbed(t *testing.T) {
	var count atomic.Int64

	err := processManifest(context.Background(), makeItems(4), 0, 2, nil, func(_ context.Context, _ model.MediaRef) error {
		if count.Add(1)%2 == 0 {
			return errors.New("provider meltdown")
		}
		return nil
	})
	// Individual failures don't abort the batch.
	require.NoError(t, err)
	assert.Equal(t, int64(4), count.Load())
}

func TestProcessManifest_AppliesLimit(t *testing.T) {
	var count atomic.Int64

	err := processManifest(context.Background(), makeItems(5), 3, 2, nil, func(_ context.Context, _ model.MediaRef) error {
		count.Add(1)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), count.Load(), "should only process 3 items due to limit")
}

func TestProcessManifest_ZeroLimitMeansAll(t *testing.T) {
	var count atomic.Int64

	err := processManifest(context.Background(), makeItems(4), 0, 5, nil, func(_ context.Context, _ model.MediaRef) error {
		count.Add(1)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(4), count.Load())
}

func TestProcessManifest_Concurrency1(t *testing.T) {
	var count atomic.Int64

	err := processManifest(context.Background(), makeItems(3), 0, 1, nil, func(_ context.Context, _ model.MediaRef) error {
		count.Add(1)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), count.Load())
}

func TestProcessManifest_ResolvesMissingURLs(t *testing.T) {
	items := []manifest.Item{
		{MediaID: "vid-0", MediaType: model.MediaTypeVideo},
		{MediaID: "vid-1", MediaType: model.MediaTypeVideo, MediaURL: "https://cdn.test/vid-1.mp4"},
	}
	resolver := &stubResolver{}

	var urls sync.Map
	err := processManifest(context.Background(), items, 0, 1, resolver, func(_ context.Context, ref model.MediaRef) error {
		urls.Store(ref.MediaID, ref.LocatorURL)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"vid-0"}, resolver.resolved, "only the url-less row resolves")
	got, _ := urls.Load("vid-0")
	assert.Equal(t, "https://vault.test/signed/vid-0", got)
	got, _ = urls.Load("vid-1")
	assert.Equal(t, "https://cdn.test/vid-1.mp4", got)
}

func TestProcessManifest_ResolutionFailureCountsAsFailed(t *testing.T) {
	items := []manifest.Item{{MediaID: "ghost", MediaType: model.MediaTypeVideo}}
	resolver := &stubResolver{err: errors.New("mediavault: HTTP 404")}

	err := processManifest(context.Background(), items, 0, 1, resolver, func(_ context.Context, _ model.MediaRef) error {
		t.Fatal("analyze should not run when resolution fails")
		return nil
	})
	require.NoError(t, err)
}

func TestProcessManifest_NoResolverSkipsURLLessRows(t *testing.T) {
	items := []manifest.Item{{MediaID: "vid-0", MediaType: model.MediaTypeVideo}}

	err := processManifest(context.Background(), items, 0, 1, nil, func(_ context.Context, _ model.MediaRef) error {
		t.Fatal("analyze should not run without a url")
		return nil
	})
	require.NoError(t, err)
}

func TestProcessManifest_GeneratesMissingIDs(t *testing.T) {
	items := []manifest.Item{{MediaType: model.MediaTypePhoto, MediaURL: "https://cdn.test/x.jpg"}}

	var gotID string
	err := processManifest(context.Background(), items, 0, 1, nil, func(_ context.Context, ref model.MediaRef) error {
		gotID = ref.MediaID
		return nil
	})
	require.NoError(t, err)
	assert.NotEmpty(t, gotID)
}

func TestProcessManifest_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := processManifest(ctx, makeItems(2), 0, 2, nil, func(ctx context.Context, _ model.MediaRef) error {
		return ctx.Err()
	})
	// Item failures are swallowed, cancellation included.
	assert.NoError(t, err)
}

func TestFormatManifest(t *testing.T) {
	items := []manifest.Item{
		{MediaID: "vid-1", MediaType: model.MediaTypeVideo, MediaURL: "https://cdn.test/vid-1.mp4"},
		{MediaID: "img-2", MediaType: model.MediaTypePhoto},
		{MediaType: model.MediaTypeVideo, MediaURL: "https://cdn.test/unnamed.mp4"},
	}

	var buf strings.Builder
	formatManifest(&buf, items, 0)
	out := buf.String()

	assert.Contains(t, out, "vid-1")
	assert.Contains(t, out, "(resolve via mediavault)")
	assert.Contains(t, out, "(generated)")
	assert.Contains(t, out, "3 items")
}

func TestFormatManifest_AppliesLimit(t *testing.T) {
	var buf strings.Builder
	formatManifest(&buf, makeItems(5), 2)

	assert.Contains(t, buf.String(), "2 items")
	assert.NotContains(t, buf.String(), "vid-4")
}
