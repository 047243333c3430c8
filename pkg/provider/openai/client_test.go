package openai

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aiconfig/pkg/ai"
	"aiconfig/pkg/logx"
	"aiconfig/pkg/provider"
)

func TestMapParameters(t *testing.T) {
	out := MapParameters(map[string]any{
		provider.ParamTemperature:   0.3,
		provider.ParamMaxTokens:     256,
		provider.ParamTopP:          0.9,
		provider.ParamStopSequences: []string{"END"},
		"seed":                      42,
	})

	assert.Equal(t, 0.3, out["temperature"])
	assert.Equal(t, 256, out["max_completion_tokens"])
	assert.Equal(t, 0.9, out["top_p"])
	assert.Equal(t, []string{"END"}, out["stop"])
	assert.Equal(t, 42, out["seed"], "unknown keys pass through")
	assert.NotContains(t, out, provider.ParamMaxTokens)
}

func TestBuildRequest(t *testing.T) {
	c := &Client{
		model: "gpt-4o-mini",
		params: MapParameters(map[string]any{
			provider.ParamTemperature: 0.2,
			provider.ParamMaxTokens:   128,
		}),
	}

	req := c.buildRequest([]ai.Message{
		{Role: ai.RoleSystem, Content: "be brief"},
		{Role: ai.RoleUser, Content: "hi"},
		{Role: ai.RoleAssistant, Content: "hello"},
	})

	assert.Equal(t, "gpt-4o-mini", string(req.Model))
	require.Len(t, req.Messages, 3)
	assert.Equal(t, 0.2, req.Temperature.Value)
	assert.Equal(t, int64(128), req.MaxCompletionTokens.Value)
	assert.False(t, req.TopP.Valid(), "unset parameters stay unset")
}

func TestNewRequiresAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	_, err := New(context.Background(), provider.Config{Model: "m"}, logx.Nop())
	require.Error(t, err)
	assert.True(t, provider.Is(err, provider.ErrorTypeAuth))
}

func TestNewWithConfiguredKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	adapter, err := New(context.Background(), provider.Config{
		Model:              "gpt-4o-mini",
		ProviderParameters: map[string]any{"apiKey": "sk-test"},
	}, logx.Nop())
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", adapter.ModelName())
	assert.NoError(t, adapter.Close())
}
