// Package anthropic provides the Anthropic messages-API adapter.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"aiconfig/pkg/ai"
	"aiconfig/pkg/logx"
	"aiconfig/pkg/provider"
	"aiconfig/pkg/utils"
)

// ProviderName is the registry key for this adapter.
const ProviderName = "anthropic"

// defaultMaxTokens applies when the configuration sets no token limit; the
// messages API requires one.
const defaultMaxTokens = 4096

// structuredToolName is the forced tool used to obtain schema-constrained
// output, since the messages API has no native JSON-schema response format.
const structuredToolName = "record_structured_output"

func init() {
	provider.Register(ProviderName, New)
}

// parameterTable maps canonical parameter names to messages-API names.
var parameterTable = map[string]string{
	provider.ParamTemperature:   "temperature",
	provider.ParamMaxTokens:     "max_tokens",
	provider.ParamTopP:          "top_p",
	provider.ParamStopSequences: "stop_sequences",
}

// MapParameters translates canonical model parameters to Anthropic naming.
// Unrecognized keys pass through unchanged.
func MapParameters(params map[string]any) map[string]any {
	return provider.RenameParameters(params, parameterTable)
}

// Client wraps the Anthropic SDK to implement provider.Adapter.
type Client struct {
	client  anthropic.Client
	model   anthropic.Model
	params  map[string]any
	logger  *logx.Logger
	counter *utils.TokenCounter
}

// New builds an Anthropic adapter. The API key comes from the provider
// parameters ("apiKey") or the ANTHROPIC_API_KEY environment variable.
func New(_ context.Context, cfg provider.Config, logger *logx.Logger) (provider.Adapter, error) {
	apiKey, ok := provider.StringParam(cfg.ProviderParameters, "apiKey")
	if !ok {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, provider.NewError(provider.ErrorTypeAuth, "no Anthropic API key configured")
	}

	return &Client{
		client:  anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:   anthropic.Model(cfg.Model),
		params:  MapParameters(cfg.Parameters),
		logger:  logger.WithComponent("anthropic"),
		counter: utils.DefaultCounter(),
	}, nil
}

// ModelName returns the model identifier this adapter invokes.
func (c *Client) ModelName() string {
	return string(c.model)
}

// Close releases client resources.
func (c *Client) Close() error {
	return nil
}

// prepareMessages adapts a mixed message list to the messages-API shape:
// system messages move to the top-level system parameter, consecutive
// same-role messages merge, and the sequence is forced to start with a user
// message so strict user/assistant alternation holds.
func prepareMessages(messages []ai.Message) (systemPrompt string, converted []anthropic.MessageParam) {
	var systemParts []string
	var merged []ai.Message
	for _, msg := range messages {
		if msg.Role == ai.RoleSystem {
			systemParts = append(systemParts, msg.Content)
			continue
		}
		if len(merged) > 0 && merged[len(merged)-1].Role == msg.Role {
			merged[len(merged)-1].Content += "\n\n" + msg.Content
			continue
		}
		merged = append(merged, msg)
	}
	if len(merged) > 0 && merged[0].Role == ai.RoleAssistant {
		merged = append([]ai.Message{{Role: ai.RoleUser, Content: "."}}, merged...)
	}

	converted = make([]anthropic.MessageParam, 0, len(merged))
	for _, msg := range merged {
		role := anthropic.MessageParamRoleUser
		if msg.Role == ai.RoleAssistant {
			role = anthropic.MessageParamRoleAssistant
		}
		converted = append(converted, anthropic.MessageParam{
			Role:    role,
			Content: []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(msg.Content)},
		})
	}
	return strings.Join(systemParts, "\n\n"), converted
}

func (c *Client) buildRequest(messages []ai.Message) (anthropic.MessageNewParams, error) {
	systemPrompt, converted := prepareMessages(messages)
	if len(converted) == 0 {
		return anthropic.MessageNewParams{}, provider.NewError(provider.ErrorTypeBadRequest,
			"no user or assistant messages to send")
	}

	maxTokens := int64(defaultMaxTokens)
	if n, ok := provider.IntParam(c.params, "max_tokens"); ok {
		maxTokens = int64(n)
	}
	req := anthropic.MessageNewParams{
		Model:     c.model,
		Messages:  converted,
		MaxTokens: maxTokens,
	}
	if f, ok := provider.FloatParam(c.params, "temperature"); ok {
		req.Temperature = anthropic.Float(f)
	}
	if f, ok := provider.FloatParam(c.params, "top_p"); ok {
		req.TopP = anthropic.Float(f)
	}
	if stops, ok := provider.StringsParam(c.params, "stop_sequences"); ok {
		req.StopSequences = stops
	}
	if systemPrompt != "" {
		req.System = []anthropic.TextBlockParam{{Text: systemPrompt, Type: "text"}}
	}
	return req, nil
}

func (c *Client) metricsFor(resp *anthropic.Message, messages []ai.Message,
	reply string, latency time.Duration) ai.Metrics {
	usage := ai.TokenUsage{
		Input:  int(resp.Usage.InputTokens),
		Output: int(resp.Usage.OutputTokens),
	}
	usage.Total = usage.Input + usage.Output
	if usage.Total == 0 {
		for _, m := range messages {
			usage.Input += c.counter.CountTokens(m.Content)
		}
		usage.Output = c.counter.CountTokens(reply)
		usage.Total = usage.Input + usage.Output
	}
	return ai.Metrics{Usage: usage, Latency: latency}
}

// InvokeModel implements provider.Adapter.
func (c *Client) InvokeModel(ctx context.Context, messages []ai.Message) (provider.ChatResponse, error) {
	req, err := c.buildRequest(messages)
	if err != nil {
		return provider.ChatResponse{}, err
	}

	start := time.Now()
	resp, err := c.client.Messages.New(ctx, req)
	latency := time.Since(start)
	if err != nil {
		return provider.ChatResponse{}, classify(err)
	}
	if resp == nil || len(resp.Content) == 0 {
		return provider.ChatResponse{}, provider.NewError(provider.ErrorTypeEmptyResponse,
			"empty response from Anthropic API")
	}

	var reply strings.Builder
	for i := range resp.Content {
		block := &resp.Content[i]
		if block.Type == "text" {
			reply.WriteString(block.AsText().Text)
		}
	}
	if reply.Len() == 0 {
		return provider.ChatResponse{}, provider.NewError(provider.ErrorTypeEmptyResponse,
			"no text content in Anthropic response")
	}

	return provider.ChatResponse{
		Message: ai.Message{Role: ai.RoleAssistant, Content: reply.String()},
		Metrics: c.metricsFor(resp, messages, reply.String(), latency),
	}, nil
}

// InvokeStructuredModel implements provider.Adapter by forcing a single tool
// whose input schema is the requested output schema; the tool call's input
// is the structured result.
func (c *Client) InvokeStructuredModel(ctx context.Context, messages []ai.Message,
	schema map[string]any) (provider.StructuredResponse, error) {
	req, err := c.buildRequest(messages)
	if err != nil {
		return provider.StructuredResponse{}, err
	}

	inputSchema := anthropic.ToolInputSchemaParam{Type: "object"}
	if props, ok := schema["properties"]; ok {
		inputSchema.Properties = props
	}
	switch required := schema["required"].(type) {
	case []string:
		inputSchema.Required = required
	case []any:
		for _, item := range required {
			if s, ok := item.(string); ok {
				inputSchema.Required = append(inputSchema.Required, s)
			}
		}
	}
	req.Tools = []anthropic.ToolUnionParam{
		anthropic.ToolUnionParamOfTool(inputSchema, structuredToolName),
	}
	req.ToolChoice = anthropic.ToolChoiceUnionParam{
		OfTool: &anthropic.ToolChoiceToolParam{Name: structuredToolName},
	}

	start := time.Now()
	resp, err := c.client.Messages.New(ctx, req)
	latency := time.Since(start)
	if err != nil {
		return provider.StructuredResponse{}, classify(err)
	}
	if resp == nil || len(resp.Content) == 0 {
		return provider.StructuredResponse{}, provider.NewError(provider.ErrorTypeEmptyResponse,
			"empty response from Anthropic API")
	}

	for i := range resp.Content {
		block := &resp.Content[i]
		if block.Type != "tool_use" {
			continue
		}
		toolUse := block.AsToolUse()
		raw := string(toolUse.Input)
		out := provider.StructuredResponse{
			Raw:     raw,
			Metrics: c.metricsFor(resp, messages, raw, latency),
		}
		var decoded map[string]any
		if err := json.Unmarshal(toolUse.Input, &decoded); err != nil {
			c.logger.Debug("tool input is not a JSON object: %v", err)
			return out, nil
		}
		out.Data = decoded
		return out, nil
	}

	// Model answered in prose despite the forced tool. Surface the text so
	// the caller can report what came back.
	var text strings.Builder
	for i := range resp.Content {
		block := &resp.Content[i]
		if block.Type == "text" {
			text.WriteString(block.AsText().Text)
		}
	}
	return provider.StructuredResponse{
		Raw:     text.String(),
		Metrics: c.metricsFor(resp, messages, text.String(), latency),
	}, nil
}

// classify maps Anthropic SDK errors into classified provider errors.
func classify(err error) *provider.Error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return provider.Classify(err, apiErr.StatusCode)
	}
	return provider.Classify(err, 0)
}
