package api

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/veriscope/authenticity-engine/internal/model"
	"github.com/veriscope/authenticity-engine/internal/provider"
	"github.com/veriscope/authenticity-engine/internal/store"
	"github.com/veriscope/authenticity-engine/pkg/mediavault"
)

// mockStore implements store.Store for testing.
type mockStore struct {
	mock.Mock
}

func (m *mockStore) AppendProviderResults(ctx context.Context, ref model.MediaRef, results []model.ProviderResult) error {
	args := m.Called(ctx, ref, results)
	return args.Error(0)
}

func (m *mockStore) UpsertConsensus(ctx context.Context, ref model.MediaRef, rec model.ConsensusRecord) error {
	args := m.Called(ctx, ref, rec)
	return args.Error(0)
}

func (m *mockStore) UpsertModerationState(ctx context.Context, mediaID string, digest model.ModerationDigest) error {
	args := m.Called(ctx, mediaID, digest)
	return args.Error(0)
}

func (m *mockStore) GetConsensus(ctx context.Context, mediaID string, mediaType model.MediaType) (*model.ConsensusRecord, error) {
	args := m.Called(ctx, mediaID, mediaType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ConsensusRecord), args.Error(1)
}

func (m *mockStore) ListProviderResults(ctx context.Context, mediaID string, mediaType model.MediaType) ([]model.ProviderResult, error) {
	args := m.Called(ctx, mediaID, mediaType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ProviderResult), args.Error(1)
}

func (m *mockStore) CountAnalyses(ctx context.Context, since time.Time) (int, error) {
	args := m.Called(ctx, since)
	return args.Int(0), args.Error(1)
}

func (m *mockStore) VerdictCounts(ctx context.Context, since time.Time) (map[model.Verdict]int, error) {
	args := m.Called(ctx, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[model.Verdict]int), args.Error(1)
}

func (m *mockStore) RecommendationCounts(ctx context.Context, since time.Time) (map[model.Recommendation]int, error) {
	args := m.Called(ctx, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[model.Recommendation]int), args.Error(1)
}

func (m *mockStore) HumanReviewCount(ctx context.Context, since time.Time) (int, error) {
	args := m.Called(ctx, since)
	return args.Int(0), args.Error(1)
}

func (m *mockStore) ProviderActivity(ctx context.Context, since time.Time) ([]store.ProviderActivity, error) {
	args := m.Called(ctx, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]store.ProviderActivity), args.Error(1)
}

func (m *mockStore) RecentConsensus(ctx context.Context, limit int) ([]model.ConsensusSummary, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ConsensusSummary), args.Error(1)
}

func (m *mockStore) Migrate(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockStore) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

// mockResolver implements mediavault.Client for testing.
type mockResolver struct {
	mock.Mock
}

func (m *mockResolver) Resolve(ctx context.Context, mediaID, mediaType string) (*mediavault.SignedMedia, error) {
	args := m.Called(ctx, mediaID, mediaType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*mediavault.SignedMedia), args.Error(1)
}

// stubAdapter is a canned detection provider for handler tests.
type stubAdapter struct {
	name    string
	enabled bool
	types   []model.MediaType
	result  *model.ProviderResult
	reason  provider.AbsentReason
}

func (s *stubAdapter) Name() string  { return s.name }
func (s *stubAdapter) Enabled() bool { return s.enabled }

func (s *stubAdapter) Supports(mt model.MediaType) bool {
	if len(s.types) == 0 {
		return mt.Valid()
	}
	for _, m := range s.types {
		if m == mt {
			return true
		}
	}
	return false
}

func (s *stubAdapter) Analyze(_ context.Context, _ model.MediaRef) provider.Outcome {
	if s.result == nil {
		return provider.Outcome{Provider: s.name, Reason: s.reason}
	}
	res := *s.result
	res.Provider = s.name
	return provider.Outcome{Provider: s.name, Result: &res}
}

var (
	_ store.Store       = (*mockStore)(nil)
	_ mediavault.Client = (*mockResolver)(nil)
	_ provider.Adapter  = (*stubAdapter)(nil)
)
