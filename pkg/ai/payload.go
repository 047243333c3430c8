package ai

import (
	"encoding/json"

	"aiconfig/pkg/logx"
)

// Payload parsing applies the field-level override policy: a present,
// non-null, well-typed payload field wins; anything absent or malformed
// falls back to the caller's default for that field alone. The served
// payload is operator controlled and must never be able to crash the
// caller, so nothing in this file returns an error.

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asBool(v any) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func asInt(v any) (int, bool) {
	f, ok := asFloat(v)
	if !ok {
		return 0, false
	}
	return int(f), true
}

func asMap(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

func asSlice(v any) ([]any, bool) {
	s, ok := v.([]any)
	return s, ok
}

// parseModel extracts a model block. A model without a string name is
// malformed and yields nil.
func parseModel(v any, logger *logx.Logger) *ModelConfig {
	m, ok := asMap(v)
	if !ok {
		if v != nil {
			logger.Warn("ignoring malformed model block of type %T", v)
		}
		return nil
	}
	name, ok := asString(m["name"])
	if !ok || name == "" {
		logger.Warn("ignoring model block without a name")
		return nil
	}
	out := &ModelConfig{Name: name}
	if params, ok := asMap(m["parameters"]); ok {
		out.Parameters = params
	}
	if custom, ok := asMap(m["custom"]); ok {
		out.Custom = custom
	}
	return out
}

func parseProvider(v any, logger *logx.Logger) *ProviderConfig {
	m, ok := asMap(v)
	if !ok {
		if v != nil {
			logger.Warn("ignoring malformed provider block of type %T", v)
		}
		return nil
	}
	name, ok := asString(m["name"])
	if !ok || name == "" {
		logger.Warn("ignoring provider block without a name")
		return nil
	}
	out := &ProviderConfig{Name: name}
	if params, ok := asMap(m["parameters"]); ok {
		out.Parameters = params
	}
	return out
}

// parseMessages extracts the message list, dropping entries whose role is
// outside {system, user, assistant} or whose shape is wrong. Returns
// (nil, false) when the field itself is absent or not a list, so the caller
// can fall back to defaults; an empty well-formed list is (non-nil, true).
func parseMessages(v any, logger *logx.Logger) ([]Message, bool) {
	items, ok := asSlice(v)
	if !ok {
		if v != nil {
			logger.Warn("ignoring malformed messages block of type %T", v)
		}
		return nil, false
	}
	out := make([]Message, 0, len(items))
	for i, item := range items {
		m, ok := asMap(item)
		if !ok {
			logger.Warn("dropping malformed message at index %d", i)
			continue
		}
		role, roleOK := asString(m["role"])
		content, contentOK := asString(m["content"])
		if !roleOK || !contentOK {
			logger.Warn("dropping message at index %d with non-string role or content", i)
			continue
		}
		if !ValidRole(Role(role)) {
			logger.Warn("dropping message at index %d with unrecognized role %q", i, role)
			continue
		}
		out = append(out, Message{Role: Role(role), Content: content})
	}
	return out, true
}

func parseMetricKeys(v any, logger *logx.Logger) ([]string, bool) {
	items, ok := asSlice(v)
	if !ok {
		if v != nil {
			logger.Warn("ignoring malformed evaluationMetricKeys block of type %T", v)
		}
		return nil, false
	}
	out := make([]string, 0, len(items))
	for i, item := range items {
		key, ok := asString(item)
		if !ok || key == "" {
			logger.Warn("dropping non-string evaluation metric key at index %d", i)
			continue
		}
		out = append(out, key)
	}
	return out, true
}

// parseJudgeRefs extracts judgeConfiguration.judges. A judge entry needs a
// key; a missing or malformed sampling rate defaults to 1 (always evaluate),
// and out-of-range rates are clamped into [0,1].
func parseJudgeRefs(v any, logger *logx.Logger) []JudgeRef {
	cfg, ok := asMap(v)
	if !ok {
		if v != nil {
			logger.Warn("ignoring malformed judgeConfiguration block of type %T", v)
		}
		return nil
	}
	items, ok := asSlice(cfg["judges"])
	if !ok {
		return nil
	}
	out := make([]JudgeRef, 0, len(items))
	for i, item := range items {
		m, ok := asMap(item)
		if !ok {
			logger.Warn("dropping malformed judge entry at index %d", i)
			continue
		}
		key, ok := asString(m["key"])
		if !ok || key == "" {
			logger.Warn("dropping judge entry at index %d without a key", i)
			continue
		}
		rate := 1.0
		if raw, present := m["samplingRate"]; present {
			if f, ok := asFloat(raw); ok {
				rate = f
			} else {
				logger.Warn("judge %q has malformed samplingRate, defaulting to 1", key)
			}
		}
		if rate < 0 {
			rate = 0
		} else if rate > 1 {
			rate = 1
		}
		out = append(out, JudgeRef{Key: key, SamplingRate: rate})
	}
	return out
}

// enabledFrom resolves the enabled flag: payload wins when well-typed,
// otherwise the default; a config that declares itself enabled but names no
// model is forced off, since nothing could be invoked from it.
func enabledFrom(payload map[string]any, def bool) bool {
	if b, ok := asBool(payload["enabled"]); ok {
		return b
	}
	return def
}

func finalizeEnabled(enabled bool, model *ModelConfig, logger *logx.Logger) bool {
	if enabled && model == nil {
		logger.Warn("config enabled but no usable model, treating as disabled")
		return false
	}
	return enabled
}

// parseCompletion merges a served payload over completion defaults and
// interpolates messages exactly once.
func parseCompletion(payload map[string]any, def CompletionDefaults,
	vars map[string]any, logger *logx.Logger) CompletionConfig {
	if payload == nil {
		payload = map[string]any{}
	}
	out := CompletionConfig{}
	out.Model = parseModel(payload["model"], logger)
	if out.Model == nil {
		out.Model = def.Model
	}
	out.Provider = parseProvider(payload["provider"], logger)
	if out.Provider == nil {
		out.Provider = def.Provider
	}
	msgs, ok := parseMessages(payload["messages"], logger)
	if !ok {
		msgs = def.Messages
	}
	out.Messages = interpolateMessages(msgs, vars, logger)
	out.Judges = parseJudgeRefs(payload["judgeConfiguration"], logger)
	out.Enabled = finalizeEnabled(enabledFrom(payload, def.Enabled), out.Model, logger)
	return out
}

// parseAgent merges a served payload over agent defaults; instructions are
// interpolated exactly once like message content.
func parseAgent(payload map[string]any, def AgentDefaults,
	vars map[string]any, logger *logx.Logger) AgentConfig {
	if payload == nil {
		payload = map[string]any{}
	}
	out := AgentConfig{}
	out.Model = parseModel(payload["model"], logger)
	if out.Model == nil {
		out.Model = def.Model
	}
	out.Provider = parseProvider(payload["provider"], logger)
	if out.Provider == nil {
		out.Provider = def.Provider
	}
	instructions, ok := asString(payload["instructions"])
	if !ok {
		if payload["instructions"] != nil {
			logger.Warn("ignoring malformed instructions block of type %T", payload["instructions"])
		}
		instructions = def.Instructions
	}
	out.Instructions = interpolate(instructions, vars, logger)
	out.Judges = parseJudgeRefs(payload["judgeConfiguration"], logger)
	out.Enabled = finalizeEnabled(enabledFrom(payload, def.Enabled), out.Model, logger)
	return out
}

// parseJudge merges a served payload over judge defaults. Judge messages
// keep their raw templates: evaluation interpolates them later, once the
// candidate input and output exist.
func parseJudge(payload map[string]any, def JudgeDefaults, logger *logx.Logger) JudgeConfig {
	if payload == nil {
		payload = map[string]any{}
	}
	out := JudgeConfig{}
	out.Model = parseModel(payload["model"], logger)
	if out.Model == nil {
		out.Model = def.Model
	}
	out.Provider = parseProvider(payload["provider"], logger)
	if out.Provider == nil {
		out.Provider = def.Provider
	}
	msgs, ok := parseMessages(payload["messages"], logger)
	if !ok {
		msgs = def.Messages
	}
	out.Messages = msgs
	keys, ok := parseMetricKeys(payload["evaluationMetricKeys"], logger)
	if !ok {
		keys = def.EvaluationMetricKeys
	}
	out.EvaluationMetricKeys = keys
	out.Enabled = finalizeEnabled(enabledFrom(payload, def.Enabled), out.Model, logger)
	return out
}
