// Package provider defines the adapter interface and registry for media
// authenticity detection vendors.
//
// Adapters never return errors. A provider that is unconfigured, slow,
// unreachable, or returns garbage yields an absent Outcome with a reason;
// the fan-out layer records the reason and moves on. This keeps a single
// flaky vendor from ever aborting an analysis batch.
package provider

import (
	"context"
	"sync"

	"github.com/veriscope/authenticity-engine/internal/model"
)

// AbsentReason explains why an adapter produced no result.
type AbsentReason string

const (
	// ReasonNone marks an outcome that carries a result.
	ReasonNone AbsentReason = ""
	// ReasonNoCredential means the adapter has no API key configured.
	ReasonNoCredential AbsentReason = "no_credential"
	// ReasonUnsupportedMedia means the adapter cannot analyze this media type.
	ReasonUnsupportedMedia AbsentReason = "unsupported_media"
	// ReasonTimeout means the per-call deadline elapsed before the provider answered.
	ReasonTimeout AbsentReason = "timeout"
	// ReasonHTTPError means the provider answered with a non-2xx status.
	ReasonHTTPError AbsentReason = "http_error"
	// ReasonNetworkError means the call failed below the HTTP layer.
	ReasonNetworkError AbsentReason = "network_error"
	// ReasonParseError means the provider's response could not be decoded.
	ReasonParseError AbsentReason = "parse_error"
)

// Outcome is the settled result of one adapter call. Result is nil exactly
// when Reason is non-empty.
type Outcome struct {
	Provider string
	Result   *model.ProviderResult
	Reason   AbsentReason
}

// Present reports whether the outcome carries a usable result.
func (o Outcome) Present() bool {
	return o.Result != nil
}

// absent builds an empty outcome for the named provider.
func absent(provider string, reason AbsentReason) Outcome {
	return Outcome{Provider: provider, Reason: reason}
}

// Adapter is one detection vendor. Implementations are stateless and safe
// for concurrent use; Analyze must honor ctx cancellation.
type Adapter interface {
	// Name returns the provider identifier used in requests, logs, and storage.
	Name() string
	// Enabled reports whether the adapter has a credential configured.
	Enabled() bool
	// Supports reports whether the adapter can analyze the given media type.
	Supports(mt model.MediaType) bool
	// Analyze scores one media item. Failures are absorbed into the Outcome.
	Analyze(ctx context.Context, ref model.MediaRef) Outcome
}

// Registry holds the configured adapters keyed by identifier. Iteration
// order follows registration order so default fan-outs are stable.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
	order    []string
}

// NewRegistry creates an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[string]Adapter),
	}
}

// Register adds an adapter. Re-registering an identifier replaces the
// adapter but keeps its original position.
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := a.Name()
	if _, ok := r.adapters[name]; !ok {
		r.order = append(r.order, name)
	}
	r.adapters[name] = a
}

// Get returns an adapter by identifier, or nil if not registered.
func (r *Registry) Get(name string) Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.adapters[name]
}

// Names returns all registered identifiers in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// All returns all registered adapters in registration order.
func (r *Registry) All() []Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	adapters := make([]Adapter, 0, len(r.order))
	for _, name := range r.order {
		adapters = append(adapters, r.adapters[name])
	}
	return adapters
}
