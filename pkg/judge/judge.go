// Package judge scores candidate model outputs against configured
// evaluation metrics using a second model as the evaluator.
package judge

import (
	"context"
	"fmt"
	"strings"

	"aiconfig/pkg/ai"
	"aiconfig/pkg/logx"
	"aiconfig/pkg/provider"
)

// ParseError reports an evaluator reply that did not conform to the
// expected response schema. It is recoverable: callers treat it as "no
// score", never as a failed turn.
type ParseError struct {
	Reason string
	Raw    string
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("judge response not parsable: %s", e.Reason)
}

// Result is the outcome of one evaluation.
type Result struct {
	// Evals maps evaluation metric key to the assigned score.
	Evals map[string]ai.EvalScore
	// Success is true when every configured metric key received a score.
	Success bool
}

// Judge is a resolved judge configuration bound to its provider adapter.
// Like any resolved config it owns a tracker; invocation metrics for the
// evaluator model are recorded there, not on the tracker of the config
// being judged.
type Judge struct {
	config    *ai.JudgeConfig
	adapter   provider.Adapter
	evalCtx   ai.Context
	variables map[string]any
	logger    *logx.Logger
}

// New binds a resolved judge configuration to an adapter. evalCtx and
// variables reproduce the resolution-time template variables; evaluation
// adds the candidate input/output on top.
func New(cfg *ai.JudgeConfig, adapter provider.Adapter, evalCtx ai.Context,
	variables map[string]any, logger *logx.Logger) *Judge {
	return &Judge{
		config:    cfg,
		adapter:   adapter,
		evalCtx:   evalCtx,
		variables: variables,
		logger:    logger.WithComponent("judge"),
	}
}

// Config returns the resolved configuration backing this judge.
func (j *Judge) Config() *ai.JudgeConfig {
	return j.config
}

// MetricKeys returns the evaluation metric keys this judge scores.
func (j *Judge) MetricKeys() []string {
	return j.config.EvaluationMetricKeys
}

// Tracker returns the judge's own tracker.
func (j *Judge) Tracker() *ai.Tracker {
	return j.config.Tracker
}

// Close releases the underlying adapter.
func (j *Judge) Close() error {
	return j.adapter.Close()
}

// ResponseSchema builds the JSON schema the evaluator must answer with: an
// "evaluations" object holding one {score, reasoning} entry per metric key,
// all required, nothing extra allowed.
func ResponseSchema(metricKeys []string) map[string]any {
	evalProps := make(map[string]any, len(metricKeys))
	for _, key := range metricKeys {
		evalProps[key] = map[string]any{
			"type": "object",
			"properties": map[string]any{
				"score": map[string]any{
					"type":    "number",
					"minimum": 0,
					"maximum": 1,
				},
				"reasoning": map[string]any{"type": "string"},
			},
			"required":             []string{"score", "reasoning"},
			"additionalProperties": false,
		}
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"evaluations": map[string]any{
				"type":                 "object",
				"properties":           evalProps,
				"required":             metricKeys,
				"additionalProperties": false,
			},
		},
		"required":             []string{"evaluations"},
		"additionalProperties": false,
	}
}

// Evaluate scores a candidate input/output pair. The judge's message
// templates are rendered here, with candidateInput and candidateOutput
// available alongside the resolution-time variables. Returns *ParseError
// when the evaluator's reply does not conform to the response schema.
func (j *Judge) Evaluate(ctx context.Context, candidateInput, candidateOutput string) (*Result, error) {
	if len(j.config.EvaluationMetricKeys) == 0 {
		return nil, fmt.Errorf("judge %q has no evaluation metric keys", j.config.VariationKey)
	}

	vars := make(map[string]any, len(j.variables)+2)
	for k, v := range j.variables {
		vars[k] = v
	}
	vars["candidateInput"] = candidateInput
	vars["candidateOutput"] = candidateOutput
	messages := ai.RenderMessages(j.config.Messages, vars, j.evalCtx, j.logger)

	schema := ResponseSchema(j.config.EvaluationMetricKeys)
	resp, err := ai.TrackMetricsOf(ctx, j.config.Tracker,
		func(ctx context.Context) (provider.StructuredResponse, error) {
			return j.adapter.InvokeStructuredModel(ctx, messages, schema)
		})
	if err != nil {
		return nil, err
	}
	return j.parseResult(resp)
}

// EvaluateMessages scores a full conversation plus the response it drew.
// The transcript becomes the candidate input; the response the candidate
// output.
func (j *Judge) EvaluateMessages(ctx context.Context, messages []ai.Message, response string) (*Result, error) {
	var transcript strings.Builder
	for _, msg := range messages {
		transcript.WriteString(string(msg.Role))
		transcript.WriteString(": ")
		transcript.WriteString(msg.Content)
		transcript.WriteString("\n")
	}
	return j.Evaluate(ctx, transcript.String(), response)
}

// parseResult extracts per-metric scores from the evaluator's reply. The
// judge's own tracker records the scores it produced; a missing or invalid
// entry becomes a recorded-but-missing score.
func (j *Judge) parseResult(resp provider.StructuredResponse) (*Result, error) {
	if resp.Data == nil {
		return nil, &ParseError{Reason: "reply is not a JSON object", Raw: resp.Raw}
	}
	evaluations, ok := resp.Data["evaluations"].(map[string]any)
	if !ok {
		return nil, &ParseError{Reason: "no evaluations object in reply", Raw: resp.Raw}
	}

	scores := make(map[string]ai.EvalScore)
	var missing []string
	for _, key := range j.config.EvaluationMetricKeys {
		entry, ok := evaluations[key].(map[string]any)
		if !ok {
			missing = append(missing, key)
			continue
		}
		score, ok := entry["score"].(float64)
		if !ok || score < 0 || score > 1 {
			j.logger.Warn("metric %q has invalid score %v, dropping", key, entry["score"])
			missing = append(missing, key)
			continue
		}
		reasoning, _ := entry["reasoning"].(string)
		scores[key] = ai.EvalScore{Score: score, Reasoning: reasoning}
	}

	if len(scores) == 0 {
		return nil, &ParseError{Reason: "no conforming metric entries in reply", Raw: resp.Raw}
	}
	j.config.Tracker.TrackEvalScores(scores)
	j.config.Tracker.TrackEvalMissing(missing...)
	return &Result{Evals: scores, Success: len(missing) == 0}, nil
}
