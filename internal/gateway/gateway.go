// Package gateway persists one analysis outcome across the store tables and
// hands review-worthy results to the escalation sinks.
package gateway

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/veriscope/authenticity-engine/internal/model"
	"github.com/veriscope/authenticity-engine/internal/review"
	"github.com/veriscope/authenticity-engine/internal/store"
)

// Escalator is the slice of the review notifier the gateway depends on.
type Escalator interface {
	Escalate(ctx context.Context, esc review.Escalation)
}

// Gateway writes analysis outcomes to the store. The three writes per
// outcome are independent: losing provider history or the moderation
// projection degrades the audit trail but must not lose the consensus, so
// only a failed consensus write fails a Persist.
type Gateway struct {
	store    store.Store
	notifier Escalator // nil disables escalation
	log      *zap.Logger
}

// New creates a Gateway. notifier may be nil when no review sinks are
// configured.
func New(st store.Store, notifier Escalator) *Gateway {
	return &Gateway{
		store:    st,
		notifier: notifier,
		log:      zap.L().With(zap.String("component", "gateway")),
	}
}

// Persist writes the provider results, the consensus record, and the
// moderation-state projection for one analysis run, then escalates the
// outcome if it needs human review.
func (gw *Gateway) Persist(ctx context.Context, ref model.MediaRef, rec model.ConsensusRecord, results []model.ProviderResult) error {
	g, gctx := errgroup.WithContext(ctx)

	var consensusErr error

	g.Go(func() error {
		if err := gw.store.AppendProviderResults(gctx, ref, results); err != nil {
			gw.log.Error("provider history write failed",
				zap.String("media_id", ref.MediaID),
				zap.Error(err),
			)
		}
		return nil
	})

	g.Go(func() error {
		if err := gw.store.UpsertConsensus(gctx, ref, rec); err != nil {
			consensusErr = err
			gw.log.Error("consensus write failed",
				zap.String("media_id", ref.MediaID),
				zap.Error(err),
			)
		}
		return nil
	})

	g.Go(func() error {
		if err := gw.store.UpsertModerationState(gctx, ref.MediaID, rec.Digest()); err != nil {
			gw.log.Error("moderation state write failed",
				zap.String("media_id", ref.MediaID),
				zap.Error(err),
			)
		}
		return nil
	})

	_ = g.Wait()

	if consensusErr != nil {
		return eris.Wrapf(consensusErr, "gateway: persist %s", ref.MediaID)
	}

	if gw.notifier != nil && rec.RequiresHumanReview {
		gw.notifier.Escalate(ctx, review.NewEscalation(ref, rec))
	}
	return nil
}
