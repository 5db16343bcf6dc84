package config

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// ProviderPolicy holds operational overrides for one detection provider.
// Policy never touches scoring or verdict ladders; those are fixed in code.
type ProviderPolicy struct {
	Enabled     *bool    `yaml:"enabled,omitempty"`
	TimeoutSecs int      `yaml:"timeout_secs,omitempty"`
	BaseURL     string   `yaml:"base_url,omitempty"`
	MediaTypes  []string `yaml:"media_types,omitempty"`
}

// Policy is the optional providers.yaml file letting ops disable a vendor,
// tune its timeout, or restrict it to certain media types without a deploy.
type Policy struct {
	Providers map[string]ProviderPolicy `yaml:"providers"`
}

// LoadPolicy reads a provider policy from a YAML file.
func LoadPolicy(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "config: read policy %s", path)
	}

	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, eris.Wrap(err, "config: parse policy")
	}
	if p.Providers == nil {
		p.Providers = map[string]ProviderPolicy{}
	}
	return &p, nil
}

// ProviderEnabled reports whether the policy leaves the named provider on.
// A nil policy, or a provider the file does not mention, defaults to on.
func (p *Policy) ProviderEnabled(name string) bool {
	if p == nil {
		return true
	}
	pp, ok := p.Providers[name]
	if !ok || pp.Enabled == nil {
		return true
	}
	return *pp.Enabled
}

// MediaTypes returns the media-type restriction for a provider, nil meaning
// no restriction.
func (p *Policy) MediaTypes(name string) []string {
	if p == nil {
		return nil
	}
	return p.Providers[name].MediaTypes
}

// Apply merges per-provider base URL and timeout overrides into cfg.
func (p *Policy) Apply(cfg *ProvidersConfig) {
	if p == nil {
		return
	}
	if pp, ok := p.Providers["truepix"]; ok {
		if pp.BaseURL != "" {
			cfg.TruePix.BaseURL = pp.BaseURL
		}
		if pp.TimeoutSecs > 0 {
			cfg.TruePix.TimeoutSecs = pp.TimeoutSecs
		}
	}
	if pp, ok := p.Providers["deepguard"]; ok {
		if pp.BaseURL != "" {
			cfg.DeepGuard.BaseURL = pp.BaseURL
		}
		if pp.TimeoutSecs > 0 {
			cfg.DeepGuard.TimeoutSecs = pp.TimeoutSecs
		}
	}
	if pp, ok := p.Providers["ganscan"]; ok {
		if pp.BaseURL != "" {
			cfg.GanScan.BaseURL = pp.BaseURL
		}
		if pp.TimeoutSecs > 0 {
			cfg.GanScan.TimeoutSecs = pp.TimeoutSecs
		}
	}
}
