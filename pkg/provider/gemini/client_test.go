package gemini

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"aiconfig/pkg/logx"
	"aiconfig/pkg/provider"
)

func TestMapParameters(t *testing.T) {
	out := MapParameters(map[string]any{
		provider.ParamTemperature:   0.4,
		provider.ParamMaxTokens:     1024,
		provider.ParamTopP:          0.8,
		provider.ParamStopSequences: []string{"STOP"},
		"topK":                      20,
	})

	assert.Equal(t, 0.4, out["temperature"])
	assert.Equal(t, 1024, out["maxOutputTokens"])
	assert.Equal(t, 0.8, out["topP"])
	assert.Equal(t, []string{"STOP"}, out["stopSequences"])
	assert.Equal(t, 20, out["topK"], "unknown keys pass through")
}

func TestSchemaFromMap(t *testing.T) {
	schema := schemaFromMap(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"score": map[string]any{
				"type":    "number",
				"minimum": 0.0,
				"maximum": 1.0,
			},
			"reasoning": map[string]any{"type": "string"},
			"tags": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
		},
		"required": []any{"score", "reasoning"},
	})

	require.NotNil(t, schema)
	assert.Equal(t, genai.TypeObject, schema.Type)
	require.Contains(t, schema.Properties, "score")
	assert.Equal(t, genai.TypeNumber, schema.Properties["score"].Type)
	require.NotNil(t, schema.Properties["score"].Minimum)
	assert.Equal(t, 0.0, *schema.Properties["score"].Minimum)
	require.NotNil(t, schema.Properties["score"].Maximum)
	assert.Equal(t, 1.0, *schema.Properties["score"].Maximum)
	assert.Equal(t, genai.TypeString, schema.Properties["reasoning"].Type)
	require.NotNil(t, schema.Properties["tags"].Items)
	assert.Equal(t, genai.TypeString, schema.Properties["tags"].Items.Type)
	assert.Equal(t, []string{"score", "reasoning"}, schema.Required)

	assert.Nil(t, schemaFromMap(nil))
}

func TestNewWithConfiguredKey(t *testing.T) {
	adapter, err := New(context.Background(), provider.Config{
		Model:              "gemini-2.0-flash",
		ProviderParameters: map[string]any{"apiKey": "test-key"},
	}, logx.Nop())
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.0-flash", adapter.ModelName())
	assert.NoError(t, adapter.Close())
}

func TestSchemaFromMapTypedRequired(t *testing.T) {
	schema := schemaFromMap(map[string]any{
		"type":     "object",
		"required": []string{"a", "b"},
	})
	assert.Equal(t, []string{"a", "b"}, schema.Required)
}
