// Package engine runs the concurrent provider fan-out for a single media
// item. Every enabled adapter is invoked independently; the engine waits
// for all branches to settle and collects whatever results arrived. One
// provider failing, hanging, or missing a credential never affects its
// siblings; the worst case is simply fewer contributing results.
package engine

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/veriscope/authenticity-engine/internal/config"
	"github.com/veriscope/authenticity-engine/internal/model"
	"github.com/veriscope/authenticity-engine/internal/provider"
)

// Analysis is the settled outcome of one fan-out run. Results holds the
// contributing provider results in call-issue order; Absent records the
// branches that produced nothing, with their reasons.
type Analysis struct {
	Results []model.ProviderResult
	Absent  []provider.Outcome
}

// Engine fans analysis requests out across the registered adapters.
type Engine struct {
	registry *provider.Registry
	cfg      config.ProvidersConfig
	log      *zap.Logger
}

// New creates an Engine over the given adapter registry.
func New(registry *provider.Registry, cfg config.ProvidersConfig) *Engine {
	return &Engine{
		registry: registry,
		cfg:      cfg,
		log:      zap.L().With(zap.String("component", "engine")),
	}
}

// Providers returns the registered provider identifiers in registration order.
func (e *Engine) Providers() []string {
	return e.registry.Names()
}

// Analyze invokes the named adapters concurrently and waits for all of them
// to settle. An empty providerIDs list means every registered adapter.
// Unknown identifiers are logged and skipped. Each branch carries its own
// deadline so a hanging provider cannot stall the batch; branch failures
// are absorbed into absent outcomes, never propagated.
func (e *Engine) Analyze(ctx context.Context, ref model.MediaRef, providerIDs []string) Analysis {
	if len(providerIDs) == 0 {
		providerIDs = e.registry.Names()
	}

	adapters := make([]provider.Adapter, 0, len(providerIDs))
	for _, id := range providerIDs {
		a := e.registry.Get(id)
		if a == nil {
			e.log.Warn("unknown provider requested, skipping",
				zap.String("provider", id),
				zap.String("media_id", ref.MediaID),
			)
			continue
		}
		adapters = append(adapters, a)
	}

	// Each branch writes only its own slot, so no mutex is needed;
	// g.Wait() orders all writes before the collection loop below.
	outcomes := make([]provider.Outcome, len(adapters))

	g, gctx := errgroup.WithContext(ctx)
	for i, a := range adapters {
		i, a := i, a // per-iteration copies (Go 1.21 loop semantics)
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(gctx, e.cfg.ProviderTimeout(a.Name()))
			defer cancel()

			start := time.Now()
			out := a.Analyze(callCtx, ref)
			if out.Present() {
				out.Result.RequestDurationMS = time.Since(start).Milliseconds()
			}
			outcomes[i] = out
			return nil // absorb branch failures; siblings must settle
		})
	}
	_ = g.Wait()

	analysis := Analysis{}
	for _, out := range outcomes {
		if out.Present() {
			analysis.Results = append(analysis.Results, *out.Result)
		} else {
			analysis.Absent = append(analysis.Absent, out)
		}
	}

	e.log.Info("provider fan-out settled",
		zap.String("media_id", ref.MediaID),
		zap.String("media_type", string(ref.MediaType)),
		zap.Int("requested", len(providerIDs)),
		zap.Int("contributed", len(analysis.Results)),
		zap.Int("absent", len(analysis.Absent)),
	)
	return analysis
}
