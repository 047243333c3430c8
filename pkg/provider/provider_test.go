package provider

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aiconfig/pkg/ai"
	"aiconfig/pkg/logx"
)

type stubAdapter struct {
	model string
}

func (s *stubAdapter) InvokeModel(context.Context, []ai.Message) (ChatResponse, error) {
	return ChatResponse{}, nil
}

func (s *stubAdapter) InvokeStructuredModel(context.Context, []ai.Message, map[string]any) (StructuredResponse, error) {
	return StructuredResponse{}, nil
}

func (s *stubAdapter) ModelName() string { return s.model }
func (s *stubAdapter) Close() error      { return nil }

func TestRegistry(t *testing.T) {
	Register("stub", func(_ context.Context, cfg Config, _ *logx.Logger) (Adapter, error) {
		return &stubAdapter{model: cfg.Model}, nil
	})

	adapter, err := New(context.Background(), "stub", Config{Model: "m1"}, logx.Nop())
	require.NoError(t, err)
	assert.Equal(t, "m1", adapter.ModelName())
	assert.Contains(t, Providers(), "stub")

	_, err = New(context.Background(), "nobody", Config{}, logx.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not registered")

	assert.Panics(t, func() {
		Register("stub", func(context.Context, Config, *logx.Logger) (Adapter, error) { return nil, nil })
	})
}

func TestConfigFrom(t *testing.T) {
	name, cfg, err := ConfigFrom(
		&ai.ModelConfig{
			Name:       "gpt-4o-mini",
			Parameters: map[string]any{"temperature": 0.1},
			Custom:     map[string]any{"team": "search"},
		},
		&ai.ProviderConfig{Name: "openai", Parameters: map[string]any{"baseUrl": "http://x"}},
	)
	require.NoError(t, err)
	assert.Equal(t, "openai", name)
	assert.Equal(t, "gpt-4o-mini", cfg.Model)
	assert.Equal(t, 0.1, cfg.Parameters["temperature"])
	assert.Equal(t, "search", cfg.Custom["team"])
	assert.Equal(t, "http://x", cfg.ProviderParameters["baseUrl"])

	_, _, err = ConfigFrom(nil, &ai.ProviderConfig{Name: "openai"})
	require.Error(t, err)
	_, _, err = ConfigFrom(&ai.ModelConfig{Name: "m"}, nil)
	require.Error(t, err)
}

func TestRenameParameters(t *testing.T) {
	table := map[string]string{
		ParamMaxTokens:     "max_tokens",
		ParamStopSequences: "stop",
	}
	in := map[string]any{
		ParamMaxTokens:     1024,
		ParamStopSequences: []string{"END"},
		"seed":             7,
		"mirostat":         2,
	}

	out := RenameParameters(in, table)

	assert.Equal(t, 1024, out["max_tokens"])
	assert.Equal(t, []string{"END"}, out["stop"])
	// Unknown keys pass through untouched for forward compatibility.
	assert.Equal(t, 7, out["seed"])
	assert.Equal(t, 2, out["mirostat"])
	assert.NotContains(t, out, ParamMaxTokens)

	assert.Nil(t, RenameParameters(nil, table))
}

func TestParamExtractors(t *testing.T) {
	params := map[string]any{
		"temperature": 0.7,
		"maxTokens":   float64(512),
		"count":       3,
		"name":        "x",
		"stops":       []any{"a", "b"},
		"typedStops":  []string{"c"},
		"badStops":    []any{"a", 1},
	}

	f, ok := FloatParam(params, "temperature")
	assert.True(t, ok)
	assert.Equal(t, 0.7, f)
	_, ok = FloatParam(params, "name")
	assert.False(t, ok)

	n, ok := IntParam(params, "maxTokens")
	assert.True(t, ok)
	assert.Equal(t, 512, n)
	n, ok = IntParam(params, "count")
	assert.True(t, ok)
	assert.Equal(t, 3, n)

	s, ok := StringParam(params, "name")
	assert.True(t, ok)
	assert.Equal(t, "x", s)

	stops, ok := StringsParam(params, "stops")
	assert.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, stops)
	stops, ok = StringsParam(params, "typedStops")
	assert.True(t, ok)
	assert.Equal(t, []string{"c"}, stops)
	_, ok = StringsParam(params, "badStops")
	assert.False(t, ok)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		want   ErrorType
	}{
		{"canceled", context.Canceled, 0, ErrorTypeCanceled},
		{"deadline", context.DeadlineExceeded, 0, ErrorTypeTransient},
		{"unauthorized", errors.New("request failed"), 401, ErrorTypeAuth},
		{"forbidden", errors.New("request failed"), 403, ErrorTypeAuth},
		{"throttled", errors.New("request failed"), 429, ErrorTypeRateLimit},
		{"bad request", errors.New("request failed"), 400, ErrorTypeBadRequest},
		{"server error", errors.New("request failed"), 503, ErrorTypeTransient},
		{"connection text", errors.New("connection reset by peer"), 0, ErrorTypeTransient},
		{"quota text", errors.New("quota exceeded for project"), 0, ErrorTypeRateLimit},
		{"api key text", errors.New("invalid api key provided"), 0, ErrorTypeAuth},
		{"context length text", errors.New("maximum context length reached"), 0, ErrorTypeBadRequest},
		{"mystery", errors.New("entropy reversed"), 0, ErrorTypeUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			classified := Classify(tt.err, tt.status)
			require.NotNil(t, classified)
			assert.Equal(t, tt.want, classified.Type)
			assert.Equal(t, tt.want.String(), classified.ErrorType())
		})
	}
}

func TestClassifyPassesThroughClassified(t *testing.T) {
	original := NewError(ErrorTypeRateLimit, "slow down")
	wrapped := fmt.Errorf("invoke: %w", original)
	assert.Same(t, original, Classify(wrapped, 500))
}

func TestErrorRetryability(t *testing.T) {
	assert.True(t, NewError(ErrorTypeRateLimit, "").IsRetryable())
	assert.True(t, NewError(ErrorTypeTransient, "").IsRetryable())
	assert.True(t, NewError(ErrorTypeEmptyResponse, "").IsRetryable())
	assert.False(t, NewError(ErrorTypeAuth, "").IsRetryable())
	assert.False(t, NewError(ErrorTypeBadRequest, "").IsRetryable())
	assert.False(t, NewError(ErrorTypeCanceled, "").IsRetryable())
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := NewErrorWithCause(ErrorTypeTransient, cause, "wrapped")
	assert.ErrorIs(t, err, cause)
	assert.True(t, Is(err, ErrorTypeTransient))
	assert.Equal(t, ErrorTypeTransient, TypeOf(fmt.Errorf("outer: %w", err)))
	assert.Equal(t, ErrorTypeUnknown, TypeOf(errors.New("plain")))
}
