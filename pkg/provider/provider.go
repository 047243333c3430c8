// Package provider defines the adapter contract between resolved AI
// configurations and model backends, plus a name-keyed registry of adapter
// factories. The resolution core depends only on this package; concrete
// backends live in subpackages and register themselves on import, in the
// manner of database/sql drivers.
package provider

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"aiconfig/pkg/ai"
	"aiconfig/pkg/logx"
)

// ChatResponse is the result of one non-structured model invocation.
type ChatResponse struct {
	Message ai.Message
	Metrics ai.Metrics
}

// AIMetrics implements ai.MetricsCarrier.
func (r ChatResponse) AIMetrics() ai.Metrics { return r.Metrics }

// StructuredResponse is the result of one schema-constrained invocation.
// Data holds the decoded JSON object; Raw keeps the backend's original text
// for diagnostics when Data does not conform to what the caller expected.
type StructuredResponse struct {
	Raw     string
	Data    map[string]any
	Metrics ai.Metrics
}

// AIMetrics implements ai.MetricsCarrier.
func (r StructuredResponse) AIMetrics() ai.Metrics { return r.Metrics }

// Adapter invokes one model backend. Implementations perform no internal
// retry; call failures come back as *provider.Error and retrying is the
// caller's decision.
type Adapter interface {
	// InvokeModel sends the messages and returns the assistant's reply.
	InvokeModel(ctx context.Context, messages []ai.Message) (ChatResponse, error)

	// InvokeStructuredModel sends the messages constrained to the given
	// JSON schema and returns the decoded object.
	InvokeStructuredModel(ctx context.Context, messages []ai.Message,
		schema map[string]any) (StructuredResponse, error)

	// ModelName returns the backend model identifier this adapter invokes.
	ModelName() string

	// Close releases any resources held by the adapter.
	Close() error
}

// Config carries everything a factory needs to build an adapter from a
// resolved configuration.
type Config struct {
	// Model is the backend model identifier.
	Model string
	// Parameters holds canonical model parameters plus backend-specific
	// extras, exactly as served.
	Parameters map[string]any
	// Custom holds application-defined model values, passed through.
	Custom map[string]any
	// ProviderParameters holds provider-level settings (endpoints, ...).
	ProviderParameters map[string]any
}

// Factory builds an adapter for one provider family. The context bounds any
// backend handshakes performed during construction.
type Factory func(ctx context.Context, cfg Config, logger *logx.Logger) (Adapter, error)

var (
	registryMu sync.RWMutex
	factories  = make(map[string]Factory)
)

// Register makes an adapter factory available under the given provider
// name. It panics on duplicate registration, which indicates a wiring bug.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if factory == nil {
		panic("provider: Register factory is nil")
	}
	if _, dup := factories[name]; dup {
		panic("provider: Register called twice for " + name)
	}
	factories[name] = factory
}

// New builds an adapter for the named provider.
func New(ctx context.Context, name string, cfg Config, logger *logx.Logger) (Adapter, error) {
	registryMu.RLock()
	factory, ok := factories[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("provider %q not registered (known: %v)", name, Providers())
	}
	return factory(ctx, cfg, logger)
}

// Providers returns the sorted names of all registered providers.
func Providers() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]string, 0, len(factories))
	for name := range factories {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// ConfigFrom assembles an adapter Config from resolved model and provider
// blocks. Returns the provider name to look up in the registry.
func ConfigFrom(model *ai.ModelConfig, prov *ai.ProviderConfig) (string, Config, error) {
	if model == nil || model.Name == "" {
		return "", Config{}, fmt.Errorf("resolved config names no model")
	}
	if prov == nil || prov.Name == "" {
		return "", Config{}, fmt.Errorf("resolved config names no provider")
	}
	return prov.Name, Config{
		Model:              model.Name,
		Parameters:         model.Parameters,
		Custom:             model.Custom,
		ProviderParameters: prov.Parameters,
	}, nil
}
