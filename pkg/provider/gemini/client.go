// Package gemini provides the Google Gemini adapter.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"google.golang.org/genai"

	"aiconfig/pkg/ai"
	"aiconfig/pkg/logx"
	"aiconfig/pkg/provider"
	"aiconfig/pkg/utils"
)

// ProviderName is the registry key for this adapter.
const ProviderName = "gemini"

func init() {
	provider.Register(ProviderName, New)
}

// parameterTable maps canonical parameter names to GenerateContent names.
var parameterTable = map[string]string{
	provider.ParamTemperature:   "temperature",
	provider.ParamMaxTokens:     "maxOutputTokens",
	provider.ParamTopP:          "topP",
	provider.ParamStopSequences: "stopSequences",
}

// MapParameters translates canonical model parameters to Gemini naming.
// Unrecognized keys pass through unchanged.
func MapParameters(params map[string]any) map[string]any {
	return provider.RenameParameters(params, parameterTable)
}

// Client wraps the genai SDK to implement provider.Adapter.
type Client struct {
	client  *genai.Client
	model   string
	params  map[string]any
	logger  *logx.Logger
	counter *utils.TokenCounter
}

// New builds a Gemini adapter. The API key comes from the provider
// parameters ("apiKey") or, when absent, the SDK's own environment lookup
// (GEMINI_API_KEY / GOOGLE_API_KEY).
func New(ctx context.Context, cfg provider.Config, logger *logx.Logger) (provider.Adapter, error) {
	clientConfig := &genai.ClientConfig{Backend: genai.BackendGeminiAPI}
	if apiKey, ok := provider.StringParam(cfg.ProviderParameters, "apiKey"); ok {
		clientConfig.APIKey = apiKey
	}
	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, provider.NewErrorWithCause(provider.ErrorTypeAuth, err,
			"create Gemini client")
	}

	return &Client{
		client:  client,
		model:   cfg.Model,
		params:  MapParameters(cfg.Parameters),
		logger:  logger.WithComponent("gemini"),
		counter: utils.DefaultCounter(),
	}, nil
}

// ModelName returns the model identifier this adapter invokes.
func (c *Client) ModelName() string {
	return c.model
}

// Close releases client resources.
func (c *Client) Close() error {
	return nil
}

// buildRequest converts messages to Gemini contents. System messages become
// the system instruction; assistant maps to the "model" role.
func (c *Client) buildRequest(messages []ai.Message) ([]*genai.Content, *genai.GenerateContentConfig) {
	var systemParts []string
	var contents []*genai.Content
	for _, msg := range messages {
		if msg.Role == ai.RoleSystem {
			systemParts = append(systemParts, msg.Content)
			continue
		}
		role := genai.Role(genai.RoleUser)
		if msg.Role == ai.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(msg.Content, role))
	}

	config := &genai.GenerateContentConfig{}
	if f, ok := provider.FloatParam(c.params, "temperature"); ok {
		config.Temperature = genai.Ptr(float32(f))
	}
	if f, ok := provider.FloatParam(c.params, "topP"); ok {
		config.TopP = genai.Ptr(float32(f))
	}
	if n, ok := provider.IntParam(c.params, "maxOutputTokens"); ok {
		config.MaxOutputTokens = int32(n)
	}
	if stops, ok := provider.StringsParam(c.params, "stopSequences"); ok {
		config.StopSequences = stops
	}
	if len(systemParts) > 0 {
		config.SystemInstruction = genai.NewContentFromText(
			strings.Join(systemParts, "\n\n"), genai.RoleUser)
	}
	return contents, config
}

func (c *Client) metricsFor(resp *genai.GenerateContentResponse, messages []ai.Message,
	reply string, latency time.Duration) ai.Metrics {
	var usage ai.TokenUsage
	if resp.UsageMetadata != nil {
		usage = ai.TokenUsage{
			Total:  int(resp.UsageMetadata.TotalTokenCount),
			Input:  int(resp.UsageMetadata.PromptTokenCount),
			Output: int(resp.UsageMetadata.CandidatesTokenCount),
		}
	}
	if usage.Total == 0 {
		for _, m := range messages {
			usage.Input += c.counter.CountTokens(m.Content)
		}
		usage.Output = c.counter.CountTokens(reply)
		usage.Total = usage.Input + usage.Output
	}
	return ai.Metrics{Usage: usage, Latency: latency}
}

func (c *Client) generate(ctx context.Context, messages []ai.Message,
	config *genai.GenerateContentConfig, contents []*genai.Content) (string, ai.Metrics, error) {
	if len(contents) == 0 {
		return "", ai.Metrics{}, provider.NewError(provider.ErrorTypeBadRequest,
			"no user or assistant messages to send")
	}
	start := time.Now()
	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, config)
	latency := time.Since(start)
	if err != nil {
		return "", ai.Metrics{}, classify(err)
	}
	reply := resp.Text()
	if reply == "" {
		return "", ai.Metrics{}, provider.NewError(provider.ErrorTypeEmptyResponse,
			"no text in Gemini response")
	}
	return reply, c.metricsFor(resp, messages, reply, latency), nil
}

// InvokeModel implements provider.Adapter.
func (c *Client) InvokeModel(ctx context.Context, messages []ai.Message) (provider.ChatResponse, error) {
	contents, config := c.buildRequest(messages)
	reply, m, err := c.generate(ctx, messages, config, contents)
	if err != nil {
		return provider.ChatResponse{}, err
	}
	return provider.ChatResponse{
		Message: ai.Message{Role: ai.RoleAssistant, Content: reply},
		Metrics: m,
	}, nil
}

// InvokeStructuredModel implements provider.Adapter using the JSON response
// MIME type plus a response schema.
func (c *Client) InvokeStructuredModel(ctx context.Context, messages []ai.Message,
	schema map[string]any) (provider.StructuredResponse, error) {
	contents, config := c.buildRequest(messages)
	config.ResponseMIMEType = "application/json"
	config.ResponseSchema = schemaFromMap(schema)

	reply, m, err := c.generate(ctx, messages, config, contents)
	if err != nil {
		return provider.StructuredResponse{}, err
	}
	out := provider.StructuredResponse{Raw: reply, Metrics: m}
	var decoded map[string]any
	if err := json.Unmarshal([]byte(reply), &decoded); err != nil {
		c.logger.Debug("structured reply is not a JSON object: %v", err)
		return out, nil
	}
	out.Data = decoded
	return out, nil
}

// schemaFromMap converts a JSON-schema-shaped map to the genai schema type.
// Unsupported constructs are dropped rather than failing the call.
func schemaFromMap(schema map[string]any) *genai.Schema {
	if schema == nil {
		return nil
	}
	out := &genai.Schema{}
	if t, ok := schema["type"].(string); ok {
		switch strings.ToLower(t) {
		case "object":
			out.Type = genai.TypeObject
		case "array":
			out.Type = genai.TypeArray
		case "string":
			out.Type = genai.TypeString
		case "number":
			out.Type = genai.TypeNumber
		case "integer":
			out.Type = genai.TypeInteger
		case "boolean":
			out.Type = genai.TypeBoolean
		}
	}
	if desc, ok := schema["description"].(string); ok {
		out.Description = desc
	}
	if props, ok := schema["properties"].(map[string]any); ok {
		out.Properties = make(map[string]*genai.Schema, len(props))
		for name, raw := range props {
			if sub, ok := raw.(map[string]any); ok {
				out.Properties[name] = schemaFromMap(sub)
			}
		}
	}
	if items, ok := schema["items"].(map[string]any); ok {
		out.Items = schemaFromMap(items)
	}
	switch required := schema["required"].(type) {
	case []string:
		out.Required = required
	case []any:
		for _, item := range required {
			if s, ok := item.(string); ok {
				out.Required = append(out.Required, s)
			}
		}
	}
	if min, ok := schema["minimum"].(float64); ok {
		out.Minimum = genai.Ptr(min)
	}
	if max, ok := schema["maximum"].(float64); ok {
		out.Maximum = genai.Ptr(max)
	}
	return out
}

// classify maps genai SDK errors into classified provider errors.
func classify(err error) *provider.Error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return provider.Classify(err, apiErr.Code)
	}
	return provider.Classify(err, 0)
}
