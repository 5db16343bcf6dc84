package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/veriscope/authenticity-engine/internal/config"
	"github.com/veriscope/authenticity-engine/internal/engine"
	"github.com/veriscope/authenticity-engine/internal/gateway"
	"github.com/veriscope/authenticity-engine/internal/model"
	"github.com/veriscope/authenticity-engine/internal/monitoring"
	"github.com/veriscope/authenticity-engine/internal/provider"
	"github.com/veriscope/authenticity-engine/internal/review"
	"github.com/veriscope/authenticity-engine/internal/store"
	"github.com/veriscope/authenticity-engine/pkg/deepguard"
	"github.com/veriscope/authenticity-engine/pkg/ganscan"
	"github.com/veriscope/authenticity-engine/pkg/mediavault"
	"github.com/veriscope/authenticity-engine/pkg/notion"
	"github.com/veriscope/authenticity-engine/pkg/truepix"
)

// engineEnv holds the initialized store, adapters, and gateway needed by
// the serve/analyze/batch commands.
type engineEnv struct {
	Store     store.Store
	Registry  *provider.Registry
	Engine    *engine.Engine
	Gateway   *gateway.Gateway
	Resolver  mediavault.Client // nil when mediavault is unconfigured
	Collector *monitoring.Collector
	Notion    notion.Client // nil when no review board is configured
}

// Close releases resources held by the environment.
func (env *engineEnv) Close() {
	if env.Store != nil {
		_ = env.Store.Close()
	}
}

// initStore opens the configured store backend.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "authenticity.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initEngine sets up the store, vendor clients, adapter registry, review
// sinks, and persistence gateway. mode selects which config fields are
// validated ("serve" or "analyze"). Callers should defer env.Close().
func initEngine(ctx context.Context, mode string) (*engineEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	// Optional ops policy file: disable vendors, tune timeouts, restrict
	// media types without a deploy.
	var policy *config.Policy
	if cfg.Providers.PolicyFile != "" {
		policy, err = config.LoadPolicy(cfg.Providers.PolicyFile)
		if err != nil {
			zap.L().Warn("provider policy not loaded, using config defaults", zap.Error(err))
			policy = nil
		} else {
			policy.Apply(&cfg.Providers)
		}
	}

	registry := provider.NewRegistry()
	registry.Register(provider.NewTruePixAdapter(
		newTruePixClient(cfg.Providers.TruePix, policy),
		policyMediaTypes(policy, "truepix"),
	))
	registry.Register(provider.NewDeepGuardAdapter(
		newDeepGuardClient(cfg.Providers.DeepGuard, policy),
		policyMediaTypes(policy, "deepguard"),
	))
	registry.Register(provider.NewGanScanAdapter(
		newGanScanClient(cfg.Providers.GanScan, policy),
		policyMediaTypes(policy, "ganscan"),
	))

	enabled := 0
	for _, a := range registry.All() {
		if a.Enabled() {
			enabled++
		}
	}
	zap.L().Info("provider registry ready",
		zap.Strings("providers", registry.Names()),
		zap.Int("enabled", enabled),
	)
	if enabled == 0 {
		zap.L().Warn("no provider has an api key configured; every analysis will settle uncertain")
	}

	var board notion.Client
	if cfg.Review.NotionToken != "" && cfg.Review.NotionDatabaseID != "" {
		board = notion.NewClient(cfg.Review.NotionToken)
	}
	var notifier gateway.Escalator
	if cfg.Review.WebhookURL != "" || board != nil {
		notifier = review.NewNotifier(cfg.Review, board)
		zap.L().Info("review escalation enabled",
			zap.Bool("webhook", cfg.Review.WebhookURL != ""),
			zap.Bool("notion_board", board != nil),
		)
	}

	var resolver mediavault.Client
	if cfg.MediaVault.ServiceToken != "" {
		opts := []mediavault.Option{
			mediavault.WithTimeout(time.Duration(cfg.MediaVault.TimeoutSecs) * time.Second),
		}
		if cfg.MediaVault.BaseURL != "" {
			opts = append(opts, mediavault.WithBaseURL(cfg.MediaVault.BaseURL))
		}
		resolver = mediavault.NewClient(cfg.MediaVault.ServiceToken, opts...)
	}

	return &engineEnv{
		Store:     st,
		Registry:  registry,
		Engine:    engine.New(registry, cfg.Providers),
		Gateway:   gateway.New(st, notifier),
		Resolver:  resolver,
		Collector: monitoring.NewCollector(st),
		Notion:    board,
	}, nil
}

// newTruePixClient builds the TruePix client, or nil when the provider has
// no credential or the policy disables it.
func newTruePixClient(c config.TruePixConfig, policy *config.Policy) truepix.Client {
	if c.APIKey == "" || !policy.ProviderEnabled("truepix") {
		return nil
	}
	return truepix.NewClient(c.APIKey, truepix.WithBaseURL(c.BaseURL))
}

func newDeepGuardClient(c config.DeepGuardConfig, policy *config.Policy) deepguard.Client {
	if c.APIKey == "" || !policy.ProviderEnabled("deepguard") {
		return nil
	}
	return deepguard.NewClient(c.APIKey,
		deepguard.WithBaseURL(c.BaseURL),
		deepguard.WithRateLimit(c.RateLimitRPS),
	)
}

func newGanScanClient(c config.GanScanConfig, policy *config.Policy) ganscan.Client {
	if c.APIKey == "" || !policy.ProviderEnabled("ganscan") {
		return nil
	}
	return ganscan.NewClient(c.APIKey,
		ganscan.WithBaseURL(c.BaseURL),
		ganscan.WithMaxRetries(c.MaxRetries),
	)
}

// policyMediaTypes converts a policy media-type restriction into model
// types, dropping anything unrecognized.
func policyMediaTypes(policy *config.Policy, name string) []model.MediaType {
	raw := policy.MediaTypes(name)
	if len(raw) == 0 {
		return nil
	}
	types := make([]model.MediaType, 0, len(raw))
	for _, s := range raw {
		mt := model.MediaType(s)
		if mt.Valid() {
			types = append(types, mt)
		} else {
			zap.L().Warn("ignoring invalid media type in provider policy",
				zap.String("provider", name),
				zap.String("media_type", s),
			)
		}
	}
	return types
}

// analysisTimeout bounds one full analysis run: the slowest provider
// timeout plus slack for persistence.
func analysisTimeout() time.Duration {
	longest := cfg.Providers.ProviderTimeout("truepix")
	for _, name := range []string{"deepguard", "ganscan"} {
		if d := cfg.Providers.ProviderTimeout(name); d > longest {
			longest = d
		}
	}
	return longest + 10*time.Second
}
