package ai

import (
	"github.com/cbroglie/mustache"

	"aiconfig/pkg/logx"
)

// templateVariables builds the variable set exposed to message templates:
// the caller's variables plus the evaluation context under "context".
// Context attributes never shadow context.key or context.kind.
func templateVariables(variables map[string]any, evalCtx Context) map[string]any {
	out := make(map[string]any, len(variables)+1)
	for k, v := range variables {
		out[k] = v
	}
	ctxVars := make(map[string]any, len(evalCtx.Attributes)+2)
	for k, v := range evalCtx.Attributes {
		ctxVars[k] = v
	}
	ctxVars["key"] = evalCtx.Key
	ctxVars["kind"] = evalCtx.Kind
	out["context"] = ctxVars
	return out
}

// interpolate renders one Mustache template against vars. Placeholders with
// no matching variable render as the empty string (the library's
// AllowMissingVariables default), which is the behavior resolution promises:
// an operator typo degrades the text, it never fails the caller. A template
// that cannot be parsed at all is returned verbatim with a warning.
func interpolate(template string, vars map[string]any, logger *logx.Logger) string {
	rendered, err := mustache.Render(template, vars)
	if err != nil {
		logger.Warn("template render failed, keeping raw content: %v", err)
		return template
	}
	return rendered
}

// RenderMessages renders message templates against the caller's variables
// plus the evaluation context. Resolution interpolates most configs itself;
// this entry point exists for judge-style configs, whose templates stay raw
// until the candidate input and output they reference become available.
func RenderMessages(msgs []Message, variables map[string]any, evalCtx Context,
	logger *logx.Logger) []Message {
	return interpolateMessages(msgs, templateVariables(variables, evalCtx), logger)
}

// interpolateMessages renders every message's content exactly once.
func interpolateMessages(msgs []Message, vars map[string]any, logger *logx.Logger) []Message {
	if len(msgs) == 0 {
		return msgs
	}
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = Message{Role: m.Role, Content: interpolate(m.Content, vars, logger)}
	}
	return out
}
