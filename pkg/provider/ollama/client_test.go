package ollama

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
		provider.ParamTemperature:   0.6,
		provider.ParamMaxTokens:     200,
		provider.ParamTopP:          0.95,
		provider.ParamStopSequences: []string{"###"},
		"mirostat":                  2,
	})

	assert.Equal(t, 0.6, out["temperature"])
	assert.Equal(t, 200, out["num_predict"])
	assert.Equal(t, 0.95, out["top_p"])
	assert.Equal(t, []string{"###"}, out["stop"])
	assert.Equal(t, 2, out["mirostat"], "unknown keys pass through")
}

func TestNewDefaultsToLocalhost(t *testing.T) {
	t.Setenv("OLLAMA_HOST", "")
	adapter, err := New(context.Background(), provider.Config{Model: "llama3.2"}, logx.Nop())
	require.NoError(t, err)
	assert.Equal(t, "llama3.2", adapter.ModelName())
	assert.NoError(t, adapter.Close())
}

func TestBuildRequest(t *testing.T) {
	c := &Client{
		model:  "llama3.2",
		params: MapParameters(map[string]any{provider.ParamMaxTokens: 64}),
		logger: logx.Nop(),
	}

	req := c.buildRequest([]ai.Message{
		{Role: ai.RoleSystem, Content: "be brief"},
		{Role: ai.RoleUser, Content: "hi"},
	})

	assert.Equal(t, "llama3.2", req.Model)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, "system", req.Messages[0].Role)
	require.NotNil(t, req.Stream)
	assert.False(t, *req.Stream)
	assert.Equal(t, 64, req.Options["num_predict"])
}
