package ai

// CompletionConfig is a resolved completion-style configuration: model,
// provider, and an interpolated message list. The value is immutable after
// resolution; only the attached Tracker accumulates state.
type CompletionConfig struct {
	Enabled      bool
	Model        *ModelConfig
	Provider     *ProviderConfig
	Messages     []Message
	Judges       []JudgeRef
	VariationKey string
	Version      int

	// Tracker is scoped to this resolution. Nil only on zero-value configs
	// that never went through a Client.
	Tracker *Tracker
}

// AgentConfig is a resolved agent-style configuration. Instructions is the
// agent's system instruction text, interpolated at resolution like messages.
type AgentConfig struct {
	Enabled      bool
	Model        *ModelConfig
	Provider     *ProviderConfig
	Instructions string
	Judges       []JudgeRef
	VariationKey string
	Version      int

	Tracker *Tracker
}

// JudgeConfig is a resolved judge-style configuration. Its messages keep
// their raw templates: a judge interpolates at evaluation time, when the
// candidate input/output it scores become available as template variables.
type JudgeConfig struct {
	Enabled              bool
	Model                *ModelConfig
	Provider             *ProviderConfig
	Messages             []Message
	EvaluationMetricKeys []string
	VariationKey         string
	Version              int

	Tracker *Tracker
}

// CompletionDefaults is the caller-supplied fallback for a completion
// resolution, used field-by-field wherever the served payload is absent or
// malformed. The zero value is a disabled config.
type CompletionDefaults struct {
	Enabled  bool            `yaml:"enabled"`
	Model    *ModelConfig    `yaml:"model"`
	Provider *ProviderConfig `yaml:"provider"`
	Messages []Message       `yaml:"messages"`
}

// AgentDefaults is the caller-supplied fallback for an agent resolution.
type AgentDefaults struct {
	Enabled      bool            `yaml:"enabled"`
	Model        *ModelConfig    `yaml:"model"`
	Provider     *ProviderConfig `yaml:"provider"`
	Instructions string          `yaml:"instructions"`
}

// JudgeDefaults is the caller-supplied fallback for a judge resolution.
type JudgeDefaults struct {
	Enabled              bool            `yaml:"enabled"`
	Model                *ModelConfig    `yaml:"model"`
	Provider             *ProviderConfig `yaml:"provider"`
	Messages             []Message       `yaml:"messages"`
	EvaluationMetricKeys []string        `yaml:"evaluationMetricKeys"`
}

func modelVariation(m *ModelConfig) map[string]any {
	if m == nil {
		return nil
	}
	out := map[string]any{"name": m.Name}
	if len(m.Parameters) > 0 {
		out["parameters"] = m.Parameters
	}
	if len(m.Custom) > 0 {
		out["custom"] = m.Custom
	}
	return out
}

func providerVariation(p *ProviderConfig) map[string]any {
	if p == nil {
		return nil
	}
	out := map[string]any{"name": p.Name}
	if len(p.Parameters) > 0 {
		out["parameters"] = p.Parameters
	}
	return out
}

func messagesVariation(msgs []Message) []any {
	if msgs == nil {
		return nil
	}
	out := make([]any, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, map[string]any{"role": string(m.Role), "content": m.Content})
	}
	return out
}

// toVariation renders the defaults in the wire payload shape, so the flag
// source can serve them verbatim as the fallback variation.
func (d CompletionDefaults) toVariation() map[string]any {
	out := map[string]any{"enabled": d.Enabled}
	if m := modelVariation(d.Model); m != nil {
		out["model"] = m
	}
	if p := providerVariation(d.Provider); p != nil {
		out["provider"] = p
	}
	if msgs := messagesVariation(d.Messages); msgs != nil {
		out["messages"] = msgs
	}
	return out
}

func (d AgentDefaults) toVariation() map[string]any {
	out := map[string]any{"enabled": d.Enabled}
	if m := modelVariation(d.Model); m != nil {
		out["model"] = m
	}
	if p := providerVariation(d.Provider); p != nil {
		out["provider"] = p
	}
	if d.Instructions != "" {
		out["instructions"] = d.Instructions
	}
	return out
}

func (d JudgeDefaults) toVariation() map[string]any {
	out := map[string]any{"enabled": d.Enabled}
	if m := modelVariation(d.Model); m != nil {
		out["model"] = m
	}
	if p := providerVariation(d.Provider); p != nil {
		out["provider"] = p
	}
	if msgs := messagesVariation(d.Messages); msgs != nil {
		out["messages"] = msgs
	}
	if len(d.EvaluationMetricKeys) > 0 {
		keys := make([]any, 0, len(d.EvaluationMetricKeys))
		for _, k := range d.EvaluationMetricKeys {
			keys = append(keys, k)
		}
		out["evaluationMetricKeys"] = keys
	}
	return out
}
