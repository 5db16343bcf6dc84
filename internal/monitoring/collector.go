// Package monitoring aggregates store counters into point-in-time snapshots
// for the status command and the metrics endpoint.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/veriscope/authenticity-engine/internal/model"
	"github.com/veriscope/authenticity-engine/internal/store"
)

// MetricsSnapshot holds a point-in-time view of analysis activity.
type MetricsSnapshot struct {
	// Consensus outcomes within the lookback window.
	Analyses        int                          `json:"analyses"`
	Verdicts        map[model.Verdict]int        `json:"verdicts"`
	Recommendations map[model.Recommendation]int `json:"recommendations"`
	HumanReview     int                          `json:"human_review"`
	HumanReviewRate float64                      `json:"human_review_rate"`

	// Per-provider result volume and latency within the window.
	Providers []store.ProviderActivity `json:"providers"`

	// Metadata.
	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// Collector gathers metrics from the store.
type Collector struct {
	store store.Store
}

// NewCollector creates a metrics collector over the given store.
func NewCollector(st store.Store) *Collector {
	return &Collector{store: st}
}

// Collect gathers a snapshot of analysis metrics over the lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	if lookbackHours <= 0 {
		lookbackHours = 24
	}
	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   time.Now().UTC(),
	}
	since := snap.CollectedAt.Add(-time.Duration(lookbackHours) * time.Hour)

	analyses, err := c.store.CountAnalyses(ctx, since)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: count analyses")
	}
	snap.Analyses = analyses

	verdicts, err := c.store.VerdictCounts(ctx, since)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: verdict counts")
	}
	snap.Verdicts = verdicts

	recommendations, err := c.store.RecommendationCounts(ctx, since)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: recommendation counts")
	}
	snap.Recommendations = recommendations

	reviews, err := c.store.HumanReviewCount(ctx, since)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: human review count")
	}
	snap.HumanReview = reviews
	if analyses > 0 {
		snap.HumanReviewRate = float64(reviews) / float64(analyses)
	}

	providers, err := c.store.ProviderActivity(ctx, since)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: provider activity")
	}
	snap.Providers = providers

	return snap, nil
}
