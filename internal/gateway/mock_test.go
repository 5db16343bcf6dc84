package gateway

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/veriscope/authenticity-engine/internal/model"
	"github.com/veriscope/authenticity-engine/internal/review"
	"github.com/veriscope/authenticity-engine/internal/store"
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

// mockEscalator records escalations handed to it.
type mockEscalator struct {
	mock.Mock
}

func (m *mockEscalator) Escalate(ctx context.Context, esc review.Escalation) {
	m.Called(ctx, esc)
}

var (
	_ store.Store = (*mockStore)(nil)
	_ Escalator   = (*mockEscalator)(nil)
)
