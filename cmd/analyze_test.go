package main

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veriscope/authenticity-engine/internal/engine"
	"github.com/veriscope/authenticity-engine/internal/model"
	"github.com/veriscope/authenticity-engine/internal/provider"
)

func TestIsMediaURL(t *testing.T) {
	assert.True(t, isMediaURL("https://cdn.test/vid.mp4"))
	assert.True(t, isMediaURL("s3://bucket/key.mp4"))
	assert.False(t, isMediaURL("vid-42"))
	assert.False(t, isMediaURL("550e8400-e29b-41d4-a716-446655440000"))
}

func TestResolveMediaRef_URLArgument(t *testing.T) {
	ref, err := resolveMediaRef(context.Background(), "https://cdn.test/vid.mp4", model.MediaTypeVideo, nil)
	require.NoError(t, err)

	assert.Equal(t, "https://cdn.test/vid.mp4", ref.LocatorURL)
	assert.Equal(t, model.MediaTypeVideo, ref.MediaType)
	_, parseErr := uuid.Parse(ref.MediaID)
	assert.NoError(t, parseErr, "url arguments get a generated media id")
}

func TestResolveMediaRef_IDArgument(t *testing.T) {
	resolver := &stubResolver{}

	ref, err := resolveMediaRef(context.Background(), "vid-42", model.MediaTypePhoto, resolver)
	require.NoError(t, err)

	assert.Equal(t, "vid-42", ref.MediaID)
	assert.Equal(t, "https://vault.test/signed/vid-42", ref.LocatorURL)
	assert.Equal(t, []string{"vid-42"}, resolver.resolved)
}

func TestResolveMediaRef_IDWithoutResolver(t *testing.T) {
	_, err := resolveMediaRef(context.Background(), "vid-42", model.MediaTypeVideo, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mediavault is not configured")
}

func TestResolveMediaRef_ResolutionFailure(t *testing.T) {
	resolver := &stubResolver{err: errors.New("mediavault: HTTP 404")}

	_, err := resolveMediaRef(context.Background(), "ghost", model.MediaTypeVideo, resolver)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "resolve ghost")
}

func TestFormatAnalysis(t *testing.T) {
	ref := model.MediaRef{MediaID: "vid-1", MediaType: model.MediaTypeVideo}
	rec := model.ConsensusRecord{
		OverallAuthenticityScore: 22.5,
		Verdict:                  model.VerdictDeepfake,
		VerdictConfidence:        88,
		ProvidersAnalyzed:        3,
		ProvidersAgreed:          2,
		Recommendation:           model.RecommendationReject,
		RequiresHumanReview:      true,
		AnalyzedAt:               time.Now().UTC(),
	}
	analysis := engine.Analysis{
		Results: []model.ProviderResult{
			{Provider: "truepix", Verdict: model.VerdictDeepfake, AIGeneratedScore: 80, DeepfakeScore: 85, Confidence: 85, RequestDurationMS: 412},
			{Provider: "deepguard", Verdict: model.VerdictDeepfake, DeepfakeScore: 91, Confidence: 91, RequestDurationMS: 640},
		},
		Absent: []provider.Outcome{
			{Provider: "ganscan", Reason: provider.ReasonNoCredential},
		},
	}

	var buf strings.Builder
	formatAnalysis(&buf, ref, rec, analysis)
	out := buf.String()

	assert.Contains(t, out, "vid-1 (video)")
	assert.Contains(t, out, "deepfake")
	assert.Contains(t, out, "reject")
	assert.Contains(t, out, "2/3 providers")
	assert.Contains(t, out, "truepix")
	assert.Contains(t, out, "412ms")
	assert.Contains(t, out, "absent: ganscan (no_credential)")
}

func TestFormatAnalysis_NoResults(t *testing.T) {
	ref := model.MediaRef{MediaID: "vid-2", MediaType: model.MediaTypePhoto}
	rec := model.ConsensusRecord{
		OverallAuthenticityScore: 50,
		Verdict:                  model.VerdictUncertain,
		Recommendation:           model.RecommendationFlag,
		RequiresHumanReview:      true,
	}

	var buf strings.Builder
	formatAnalysis(&buf, ref, rec, engine.Analysis{})
	out := buf.String()

	assert.Contains(t, out, "uncertain")
	assert.NotContains(t, out, "PROVIDER", "no provider table without results")
}
