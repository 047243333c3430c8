// Package ai implements resolution of remotely-served AI configurations:
// typed config variants with field-level defaults, template interpolation,
// and a per-resolution metrics tracker.
//
// A host resolves a configuration by key against a FlagSource (any feature
// management backend implementing the capability interface), gets back an
// immutable config plus a Tracker scoped to the served variation, and passes
// the config to a provider adapter to invoke a model.
package ai

// Role identifies the author of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ValidRole reports whether r is one of the three accepted message roles.
func ValidRole(r Role) bool {
	return r == RoleSystem || r == RoleUser || r == RoleAssistant
}

// Message is a single conversation message. Content may contain template
// placeholders before resolution; resolved configs carry interpolated content.
type Message struct {
	Role    Role   `json:"role" yaml:"role"`
	Content string `json:"content" yaml:"content"`
}

// Context identifies the subject a configuration is evaluated for. The core
// passes it through to the flag source and templates and never mutates it.
type Context struct {
	// Key uniquely identifies the subject (user key, service name, ...).
	Key string
	// Kind is the context kind, defaulting to "user" when empty.
	Kind string
	// Attributes are additional subject attributes, exposed to templates
	// under the "context" namespace.
	Attributes map[string]any
}

// NewContext returns a Context of kind "user" with the given key.
func NewContext(key string) Context {
	return Context{Key: key, Kind: "user"}
}

// ModelConfig names the model to invoke and its parameters.
type ModelConfig struct {
	// Name is the backend-recognized model identifier, e.g. "gpt-4o-mini".
	Name string
	// Parameters holds canonical invocation parameters (temperature,
	// maxTokens, topP, stopSequences) plus any backend-specific extras.
	Parameters map[string]any
	// Custom holds application-defined values passed through untouched.
	Custom map[string]any
}

// Parameter returns a named model parameter and whether it was present.
func (m *ModelConfig) Parameter(name string) (any, bool) {
	if m == nil || m.Parameters == nil {
		return nil, false
	}
	v, ok := m.Parameters[name]
	return v, ok
}

// ProviderConfig names the provider family that should serve the model.
type ProviderConfig struct {
	Name       string
	Parameters map[string]any
}

// JudgeRef attaches a judge configuration to a chat-capable config.
// SamplingRate in [0,1] controls what fraction of turns get evaluated.
type JudgeRef struct {
	Key          string
	SamplingRate float64
}
