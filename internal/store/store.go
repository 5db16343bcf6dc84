// Package store persists provider results, consensus records, and the
// moderation-state projection. Two drivers share one interface: Postgres
// (pgxpool) for production and SQLite for local or single-node use.
package store

import (
	"context"
	"time"

	"github.com/veriscope/authenticity-engine/internal/model"
)

// ProviderActivity summarizes one provider's contribution volume and
// latency over a monitoring window.
type ProviderActivity struct {
	Provider     string  `json:"provider"`
	Results      int     `json:"results"`
	AvgLatencyMS float64 `json:"avg_latency_ms"`
}

// Store defines the persistence interface for the authenticity engine.
//
// Provider result rows are append-only: one row per provider per analysis
// run, never updated. The consensus record and the moderation state are
// upserts keyed by media, so the latest analysis always wins.
type Store interface {
	// Writes
	AppendProviderResults(ctx context.Context, ref model.MediaRef, results []model.ProviderResult) error
	UpsertConsensus(ctx context.Context, ref model.MediaRef, rec model.ConsensusRecord) error
	UpsertModerationState(ctx context.Context, mediaID string, digest model.ModerationDigest) error

	// Reads
	GetConsensus(ctx context.Context, mediaID string, mediaType model.MediaType) (*model.ConsensusRecord, error)
	ListProviderResults(ctx context.Context, mediaID string, mediaType model.MediaType) ([]model.ProviderResult, error)

	// Monitoring
	CountAnalyses(ctx context.Context, since time.Time) (int, error)
	VerdictCounts(ctx context.Context, since time.Time) (map[model.Verdict]int, error)
	RecommendationCounts(ctx context.Context, since time.Time) (map[model.Recommendation]int, error)
	HumanReviewCount(ctx context.Context, since time.Time) (int, error)
	ProviderActivity(ctx context.Context, since time.Time) ([]ProviderActivity, error)
	RecentConsensus(ctx context.Context, limit int) ([]model.ConsensusSummary, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
