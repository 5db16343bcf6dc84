package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration. It is built once at
// process start and passed into every component; nothing reads process
// environment after Load returns.
type Config struct {
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Providers  ProvidersConfig  `yaml:"providers" mapstructure:"providers"`
	MediaVault MediaVaultConfig `yaml:"mediavault" mapstructure:"mediavault"`
	Review     ReviewConfig     `yaml:"review" mapstructure:"review"`
	Batch      BatchConfig      `yaml:"batch" mapstructure:"batch"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port               int      `yaml:"port" mapstructure:"port"`
	CORSOrigins        []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	RequestTimeoutSecs int      `yaml:"request_timeout_secs" mapstructure:"request_timeout_secs"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ProvidersConfig holds per-vendor detection API settings. A provider with
// an empty api_key is silently disabled for every batch.
type ProvidersConfig struct {
	DefaultTimeoutSecs int             `yaml:"default_timeout_secs" mapstructure:"default_timeout_secs"`
	PolicyFile         string          `yaml:"policy_file" mapstructure:"policy_file"`
	TruePix            TruePixConfig   `yaml:"truepix" mapstructure:"truepix"`
	DeepGuard          DeepGuardConfig `yaml:"deepguard" mapstructure:"deepguard"`
	GanScan            GanScanConfig   `yaml:"ganscan" mapstructure:"ganscan"`
}

// TruePixConfig holds TruePix API settings.
type TruePixConfig struct {
	APIKey      string `yaml:"api_key" mapstructure:"api_key"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// DeepGuardConfig holds DeepGuard API settings. DeepGuard enforces a strict
// request rate on its detection endpoint, throttled client-side.
type DeepGuardConfig struct {
	APIKey       string  `yaml:"api_key" mapstructure:"api_key"`
	BaseURL      string  `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs  int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RateLimitRPS float64 `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
}

// GanScanConfig holds GanScan API settings.
type GanScanConfig struct {
	APIKey      string `yaml:"api_key" mapstructure:"api_key"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries" mapstructure:"max_retries"`
}

// MediaVaultConfig holds settings for the media-storage service used to
// resolve signed URLs when a request carries only a media id.
type MediaVaultConfig struct {
	BaseURL      string `yaml:"base_url" mapstructure:"base_url"`
	ServiceToken string `yaml:"service_token" mapstructure:"service_token"`
	TimeoutSecs  int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// ReviewConfig configures human-review escalation sinks. All sinks are
// optional and best-effort.
type ReviewConfig struct {
	WebhookURL       string `yaml:"webhook_url" mapstructure:"webhook_url"`
	NotionToken      string `yaml:"notion_token" mapstructure:"notion_token"`
	NotionDatabaseID string `yaml:"notion_database_id" mapstructure:"notion_database_id"`
	MinSeverity      string `yaml:"min_severity" mapstructure:"min_severity"`
}

// BatchConfig configures batch manifest processing.
type BatchConfig struct {
	MaxConcurrentItems int `yaml:"max_concurrent_items" mapstructure:"max_concurrent_items"`
}

// MonitoringConfig configures the metrics snapshot window.
type MonitoringConfig struct {
	LookbackHours int `yaml:"lookback_hours" mapstructure:"lookback_hours"`
}

// ProviderTimeout returns the per-call timeout for the named provider,
// falling back to the shared default.
func (p ProvidersConfig) ProviderTimeout(name string) time.Duration {
	secs := 0
	switch name {
	case "truepix":
		secs = p.TruePix.TimeoutSecs
	case "deepguard":
		secs = p.DeepGuard.TimeoutSecs
	case "ganscan":
		secs = p.GanScan.TimeoutSecs
	}
	if secs <= 0 {
		secs = p.DefaultTimeoutSecs
	}
	if secs <= 0 {
		secs = 15
	}
	return time.Duration(secs) * time.Second
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("AUTHENGINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("server.port", 8085)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.request_timeout_secs", 120)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("providers.default_timeout_secs", 15)
	v.SetDefault("providers.truepix.base_url", "https://api.truepix.ai")
	v.SetDefault("providers.deepguard.base_url", "https://api.deepguard.io")
	v.SetDefault("providers.deepguard.rate_limit_rps", 4)
	v.SetDefault("providers.ganscan.base_url", "https://api.ganscan.dev")
	v.SetDefault("providers.ganscan.max_retries", 3)
	v.SetDefault("mediavault.timeout_secs", 10)
	v.SetDefault("review.min_severity", "flag")
	v.SetDefault("batch.max_concurrent_items", 4)
	v.SetDefault("monitoring.lookback_hours", 24)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the fields a command mode depends on. Modes: "serve"
// (HTTP API), "analyze" (one-shot and batch analysis), "ops" (migrate,
// status).
func (c *Config) Validate(mode string) error {
	var problems []string

	requireStore := func() {
		switch c.Store.Driver {
		case "postgres":
			// sqlite falls back to a local file; postgres has no sane default.
			if c.Store.DatabaseURL == "" {
				problems = append(problems, "store.database_url is required for the postgres driver")
			}
		case "sqlite":
		default:
			problems = append(problems, "store.driver must be postgres or sqlite")
		}
	}

	switch mode {
	case "serve":
		requireStore()
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
		if c.Server.RequestTimeoutSecs <= 0 {
			problems = append(problems, "server.request_timeout_secs must be > 0")
		}
	case "analyze":
		requireStore()
		if c.Batch.MaxConcurrentItems < 1 || c.Batch.MaxConcurrentItems > 32 {
			problems = append(problems, "batch.max_concurrent_items must be between 1 and 32")
		}
	case "ops":
		requireStore()
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Providers.DefaultTimeoutSecs < 1 || c.Providers.DefaultTimeoutSecs > 300 {
		problems = append(problems, "providers.default_timeout_secs must be between 1 and 300")
	}
	if c.Providers.DeepGuard.RateLimitRPS < 0 {
		problems = append(problems, "providers.deepguard.rate_limit_rps must be >= 0")
	}
	if c.Providers.GanScan.MaxRetries < 0 || c.Providers.GanScan.MaxRetries > 10 {
		problems = append(problems, "providers.ganscan.max_retries must be between 0 and 10")
	}
	if s := c.Review.MinSeverity; s != "" && s != "flag" && s != "reject" {
		problems = append(problems, "review.min_severity must be flag or reject")
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
