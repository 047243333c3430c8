// Package openai provides the OpenAI chat-completions adapter.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"aiconfig/pkg/ai"
	"aiconfig/pkg/logx"
	"aiconfig/pkg/provider"
	"aiconfig/pkg/utils"
)

// ProviderName is the registry key for this adapter.
const ProviderName = "openai"

func init() {
	provider.Register(ProviderName, New)
}

// parameterTable maps canonical parameter names to chat-completions names.
var parameterTable = map[string]string{
	provider.ParamTemperature:   "temperature",
	provider.ParamMaxTokens:     "max_completion_tokens",
	provider.ParamTopP:          "top_p",
	provider.ParamStopSequences: "stop",
}

// MapParameters translates canonical model parameters to OpenAI naming.
// Unrecognized keys pass through unchanged.
func MapParameters(params map[string]any) map[string]any {
	return provider.RenameParameters(params, parameterTable)
}

// Client wraps the OpenAI SDK to implement provider.Adapter.
type Client struct {
	client  openai.Client
	model   string
	params  map[string]any
	logger  *logx.Logger
	counter *utils.TokenCounter
}

// New builds an OpenAI adapter. The API key comes from the provider
// parameters ("apiKey") or the OPENAI_API_KEY environment variable.
func New(_ context.Context, cfg provider.Config, logger *logx.Logger) (provider.Adapter, error) {
	apiKey, ok := provider.StringParam(cfg.ProviderParameters, "apiKey")
	if !ok {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, provider.NewError(provider.ErrorTypeAuth, "no OpenAI API key configured")
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL, ok := provider.StringParam(cfg.ProviderParameters, "baseUrl"); ok {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	return &Client{
		client:  openai.NewClient(opts...),
		model:   cfg.Model,
		params:  MapParameters(cfg.Parameters),
		logger:  logger.WithComponent("openai"),
		counter: utils.DefaultCounter(),
	}, nil
}

// ModelName returns the model identifier this adapter invokes.
func (c *Client) ModelName() string {
	return c.model
}

// Close releases client resources. The OpenAI SDK holds none beyond the
// shared HTTP transport.
func (c *Client) Close() error {
	return nil
}

func (c *Client) buildRequest(messages []ai.Message) openai.ChatCompletionNewParams {
	converted := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case ai.RoleSystem:
			converted = append(converted, openai.SystemMessage(msg.Content))
		case ai.RoleAssistant:
			converted = append(converted, openai.AssistantMessage(msg.Content))
		default:
			converted = append(converted, openai.UserMessage(msg.Content))
		}
	}

	req := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.model),
		Messages: converted,
	}
	if f, ok := provider.FloatParam(c.params, "temperature"); ok {
		req.Temperature = param.NewOpt(f)
	}
	if n, ok := provider.IntParam(c.params, "max_completion_tokens"); ok {
		req.MaxCompletionTokens = param.NewOpt(int64(n))
	}
	if f, ok := provider.FloatParam(c.params, "top_p"); ok {
		req.TopP = param.NewOpt(f)
	}
	if stops, ok := provider.StringsParam(c.params, "stop"); ok {
		req.Stop = openai.ChatCompletionNewParamsStopUnion{OfStringArray: stops}
	}
	return req
}

func (c *Client) metricsFor(resp *openai.ChatCompletion, messages []ai.Message,
	reply string, latency time.Duration) ai.Metrics {
	usage := ai.TokenUsage{
		Total:  int(resp.Usage.TotalTokens),
		Input:  int(resp.Usage.PromptTokens),
		Output: int(resp.Usage.CompletionTokens),
	}
	if usage.Total == 0 {
		// Backend reported no usage; estimate so token metrics stay populated.
		for _, m := range messages {
			usage.Input += c.counter.CountTokens(m.Content)
		}
		usage.Output = c.counter.CountTokens(reply)
		usage.Total = usage.Input + usage.Output
	}
	return ai.Metrics{Usage: usage, Latency: latency}
}

func (c *Client) complete(ctx context.Context, req openai.ChatCompletionNewParams,
	messages []ai.Message) (string, ai.Metrics, error) {
	start := time.Now()
	resp, err := c.client.Chat.Completions.New(ctx, req)
	latency := time.Since(start)
	if err != nil {
		return "", ai.Metrics{}, classify(err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", ai.Metrics{}, provider.NewError(provider.ErrorTypeEmptyResponse,
			"no choices in OpenAI response")
	}
	reply := resp.Choices[0].Message.Content
	if reply == "" {
		return "", ai.Metrics{}, provider.NewError(provider.ErrorTypeEmptyResponse,
			"empty message content in OpenAI response")
	}
	return reply, c.metricsFor(resp, messages, reply, latency), nil
}

// InvokeModel implements provider.Adapter.
func (c *Client) InvokeModel(ctx context.Context, messages []ai.Message) (provider.ChatResponse, error) {
	reply, m, err := c.complete(ctx, c.buildRequest(messages), messages)
	if err != nil {
		return provider.ChatResponse{}, err
	}
	return provider.ChatResponse{
		Message: ai.Message{Role: ai.RoleAssistant, Content: reply},
		Metrics: m,
	}, nil
}

// InvokeStructuredModel implements provider.Adapter using strict
// json_schema response format. Data is nil when the backend returned
// something that is not a JSON object; Raw always carries the reply text.
func (c *Client) InvokeStructuredModel(ctx context.Context, messages []ai.Message,
	schema map[string]any) (provider.StructuredResponse, error) {
	req := c.buildRequest(messages)
	req.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
		OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
			JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
				Name:   "structured_output",
				Schema: schema,
				Strict: param.NewOpt(true),
			},
		},
	}

	reply, m, err := c.complete(ctx, req, messages)
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

// classify maps OpenAI SDK errors into classified provider errors.
func classify(err error) *provider.Error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return provider.Classify(err, apiErr.StatusCode)
	}
	return provider.Classify(err, 0)
}
