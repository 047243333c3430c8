package judge

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aiconfig/pkg/ai"
	"aiconfig/pkg/logx"
	"aiconfig/pkg/provider"
)

// fakeAdapter returns canned structured responses and records the last
// request it saw.
type fakeAdapter struct {
	response provider.StructuredResponse
	err      error

	lastMessages []ai.Message
	lastSchema   map[string]any
	closed       bool
}

func (f *fakeAdapter) InvokeModel(context.Context, []ai.Message) (provider.ChatResponse, error) {
	return provider.ChatResponse{}, errors.New("not used")
}

func (f *fakeAdapter) InvokeStructuredModel(_ context.Context, messages []ai.Message,
	schema map[string]any) (provider.StructuredResponse, error) {
	f.lastMessages = messages
	f.lastSchema = schema
	return f.response, f.err
}

func (f *fakeAdapter) ModelName() string { return "fake-model" }

func (f *fakeAdapter) Close() error {
	f.closed = true
	return nil
}

func resolveJudgeConfig(t *testing.T, source *ai.TestSource, metricKeys []any) *ai.JudgeConfig {
	t.Helper()
	source.SetVariation("scorer", ai.VariationDetail{
		Value: map[string]any{
			"enabled": true,
			"model":   map[string]any{"name": "fake-model"},
			"messages": []any{
				map[string]any{"role": "system", "content": "You are an evaluator."},
				map[string]any{"role": "user",
					"content": "Input: {{candidateInput}}\nOutput: {{candidateOutput}}"},
			},
			"evaluationMetricKeys": metricKeys,
		},
		VariationKey: "judge-v1",
	})
	client := ai.NewClient(source, ai.WithLogger(logx.Nop()))
	return client.Judge(context.Background(), "scorer", ai.NewContext("u"), ai.JudgeDefaults{})
}

func TestResponseSchemaShape(t *testing.T) {
	schema := ResponseSchema([]string{"relevance", "accuracy"})

	assert.Equal(t, "object", schema["type"])
	assert.Equal(t, []string{"evaluations"}, schema["required"])
	assert.Equal(t, false, schema["additionalProperties"])

	evaluations := schema["properties"].(map[string]any)["evaluations"].(map[string]any)
	assert.Equal(t, []string{"relevance", "accuracy"}, evaluations["required"])
	assert.Equal(t, false, evaluations["additionalProperties"])

	entry := evaluations["properties"].(map[string]any)["relevance"].(map[string]any)
	assert.Equal(t, []string{"score", "reasoning"}, entry["required"])
	score := entry["properties"].(map[string]any)["score"].(map[string]any)
	assert.Equal(t, "number", score["type"])
	assert.Equal(t, 0, score["minimum"])
	assert.Equal(t, 1, score["maximum"])
}

func TestEvaluate(t *testing.T) {
	source := ai.NewTestSource()
	cfg := resolveJudgeConfig(t, source, []any{"relevance"})
	adapter := &fakeAdapter{
		response: provider.StructuredResponse{
			Data: map[string]any{
				"evaluations": map[string]any{
					"relevance": map[string]any{
						"score":     0.85,
						"reasoning": "addresses the question",
					},
				},
			},
			Metrics: ai.Metrics{Usage: ai.TokenUsage{Total: 40, Input: 30, Output: 10}},
		},
	}
	j := New(cfg, adapter, ai.NewContext("u"), nil, logx.Nop())

	result, err := j.Evaluate(context.Background(), "what is Go?", "a language")
	require.NoError(t, err)
	assert.True(t, result.Success)
	require.Contains(t, result.Evals, "relevance")
	assert.Equal(t, 0.85, result.Evals["relevance"].Score)
	assert.Equal(t, "addresses the question", result.Evals["relevance"].Reasoning)

	// Candidate pair was rendered into the judge's templates.
	require.Len(t, adapter.lastMessages, 2)
	assert.Equal(t, "Input: what is Go?\nOutput: a language", adapter.lastMessages[1].Content)
	assert.Equal(t, ResponseSchema([]string{"relevance"}), adapter.lastSchema)

	// Invocation metrics land on the judge's own tracker.
	summary := j.Tracker().Summary()
	require.NotNil(t, summary.Outcome)
	assert.True(t, *summary.Outcome)
	assert.Equal(t, 40, summary.Usage.Total)
	require.NotNil(t, summary.JudgeScores["relevance"])
	assert.Equal(t, 0.85, summary.JudgeScores["relevance"].Score)
}

func TestEvaluateUnparsableReply(t *testing.T) {
	tests := []struct {
		name string
		resp provider.StructuredResponse
	}{
		{"not json", provider.StructuredResponse{Raw: "I'd rate it highly!"}},
		{"no evaluations", provider.StructuredResponse{
			Data: map[string]any{"verdict": "fine"},
		}},
		{"no conforming entries", provider.StructuredResponse{
			Data: map[string]any{"evaluations": map[string]any{
				"relevance": map[string]any{"score": "high"},
			}},
		}},
		{"score out of range", provider.StructuredResponse{
			Data: map[string]any{"evaluations": map[string]any{
				"relevance": map[string]any{"score": 7.5, "reasoning": "!"},
			}},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := resolveJudgeConfig(t, ai.NewTestSource(), []any{"relevance"})
			j := New(cfg, &fakeAdapter{response: tt.resp}, ai.NewContext("u"), nil, logx.Nop())

			_, err := j.Evaluate(context.Background(), "in", "out")
			var parseErr *ParseError
			require.ErrorAs(t, err, &parseErr, "non-conforming reply is a recoverable ParseError")
		})
	}
}

func TestEvaluatePartialScores(t *testing.T) {
	cfg := resolveJudgeConfig(t, ai.NewTestSource(), []any{"relevance", "accuracy"})
	adapter := &fakeAdapter{
		response: provider.StructuredResponse{
			Data: map[string]any{
				"evaluations": map[string]any{
					"relevance": map[string]any{"score": 0.7, "reasoning": "ok"},
					// accuracy entry malformed
					"accuracy": "great",
				},
			},
		},
	}
	j := New(cfg, adapter, ai.NewContext("u"), nil, logx.Nop())

	result, err := j.Evaluate(context.Background(), "in", "out")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Evals, "relevance")
	assert.NotContains(t, result.Evals, "accuracy")

	summary := j.Tracker().Summary()
	assert.Nil(t, summary.JudgeScores["accuracy"], "unparsable metric recorded as missing")
}

func TestEvaluateBackendError(t *testing.T) {
	cfg := resolveJudgeConfig(t, ai.NewTestSource(), []any{"relevance"})
	boom := provider.NewError(provider.ErrorTypeTransient, "backend down")
	j := New(cfg, &fakeAdapter{err: boom}, ai.NewContext("u"), nil, logx.Nop())

	_, err := j.Evaluate(context.Background(), "in", "out")
	require.Error(t, err)
	var parseErr *ParseError
	assert.False(t, errors.As(err, &parseErr), "backend failure is not a parse error")

	summary := j.Tracker().Summary()
	require.NotNil(t, summary.Outcome)
	assert.False(t, *summary.Outcome)
}

func TestEvaluateNoMetricKeys(t *testing.T) {
	cfg := resolveJudgeConfig(t, ai.NewTestSource(), []any{})
	j := New(cfg, &fakeAdapter{}, ai.NewContext("u"), nil, logx.Nop())

	_, err := j.Evaluate(context.Background(), "in", "out")
	require.Error(t, err)
}

func TestEvaluateMessages(t *testing.T) {
	cfg := resolveJudgeConfig(t, ai.NewTestSource(), []any{"relevance"})
	adapter := &fakeAdapter{
		response: provider.StructuredResponse{
			Data: map[string]any{
				"evaluations": map[string]any{
					"relevance": map[string]any{"score": 1.0, "reasoning": "spot on"},
				},
			},
		},
	}
	j := New(cfg, adapter, ai.NewContext("u"), nil, logx.Nop())

	_, err := j.EvaluateMessages(context.Background(), []ai.Message{
		{Role: ai.RoleUser, Content: "question"},
		{Role: ai.RoleAssistant, Content: "first answer"},
	}, "final answer")
	require.NoError(t, err)

	assert.Contains(t, adapter.lastMessages[1].Content, "user: question")
	assert.Contains(t, adapter.lastMessages[1].Content, "assistant: first answer")
	assert.Contains(t, adapter.lastMessages[1].Content, "Output: final answer")
}

func TestClose(t *testing.T) {
	cfg := resolveJudgeConfig(t, ai.NewTestSource(), []any{"relevance"})
	adapter := &fakeAdapter{}
	j := New(cfg, adapter, ai.NewContext("u"), nil, logx.Nop())

	require.NoError(t, j.Close())
	assert.True(t, adapter.closed)
}
