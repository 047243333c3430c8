// Package ollama provides the adapter for a local Ollama runtime.
package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/ollama/ollama/api"

	"aiconfig/pkg/ai"
	"aiconfig/pkg/logx"
	"aiconfig/pkg/provider"
	"aiconfig/pkg/utils"
)

// ProviderName is the registry key for this adapter.
const ProviderName = "ollama"

// defaultHostURL is the standard local Ollama endpoint.
const defaultHostURL = "http://localhost:11434"

func init() {
	provider.Register(ProviderName, New)
}

// parameterTable maps canonical parameter names to Ollama option names.
var parameterTable = map[string]string{
	provider.ParamTemperature:   "temperature",
	provider.ParamMaxTokens:     "num_predict",
	provider.ParamTopP:          "top_p",
	provider.ParamStopSequences: "stop",
}

// MapParameters translates canonical model parameters to Ollama naming.
// Unrecognized keys pass through unchanged.
func MapParameters(params map[string]any) map[string]any {
	return provider.RenameParameters(params, parameterTable)
}

// Client wraps the Ollama API client to implement provider.Adapter.
type Client struct {
	client  *api.Client
	model   string
	params  map[string]any
	logger  *logx.Logger
	counter *utils.TokenCounter
}

// New builds an Ollama adapter. The host URL comes from the provider
// parameters ("baseUrl"), the OLLAMA_HOST environment variable, or the
// standard localhost endpoint.
func New(_ context.Context, cfg provider.Config, logger *logx.Logger) (provider.Adapter, error) {
	hostURL, ok := provider.StringParam(cfg.ProviderParameters, "baseUrl")
	if !ok {
		hostURL = os.Getenv("OLLAMA_HOST")
	}
	if hostURL == "" {
		hostURL = defaultHostURL
	}
	parsedURL, err := url.Parse(hostURL)
	if err != nil {
		return nil, provider.NewErrorWithCause(provider.ErrorTypeBadRequest, err,
			"invalid Ollama host URL "+hostURL)
	}

	return &Client{
		client:  api.NewClient(parsedURL, http.DefaultClient),
		model:   cfg.Model,
		params:  MapParameters(cfg.Parameters),
		logger:  logger.WithComponent("ollama"),
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

func (c *Client) buildRequest(messages []ai.Message) *api.ChatRequest {
	converted := make([]api.Message, 0, len(messages))
	for _, msg := range messages {
		converted = append(converted, api.Message{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}
	stream := false
	return &api.ChatRequest{
		Model:    c.model,
		Messages: converted,
		Stream:   &stream,
		Options:  c.params,
	}
}

func (c *Client) metricsFor(resp *api.ChatResponse, messages []ai.Message,
	reply string, latency time.Duration) ai.Metrics {
	usage := ai.TokenUsage{
		Input:  resp.PromptEvalCount,
		Output: resp.EvalCount,
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

func (c *Client) chat(ctx context.Context, req *api.ChatRequest,
	messages []ai.Message) (string, ai.Metrics, error) {
	start := time.Now()
	var response api.ChatResponse
	err := c.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		response = resp
		return nil
	})
	latency := time.Since(start)
	if err != nil {
		return "", ai.Metrics{}, classify(err)
	}
	reply := response.Message.Content
	if reply == "" {
		return "", ai.Metrics{}, provider.NewError(provider.ErrorTypeEmptyResponse,
			"empty message content in Ollama response")
	}
	return reply, c.metricsFor(&response, messages, reply, latency), nil
}

// InvokeModel implements provider.Adapter.
func (c *Client) InvokeModel(ctx context.Context, messages []ai.Message) (provider.ChatResponse, error) {
	reply, m, err := c.chat(ctx, c.buildRequest(messages), messages)
	if err != nil {
		return provider.ChatResponse{}, err
	}
	return provider.ChatResponse{
		Message: ai.Message{Role: ai.RoleAssistant, Content: reply},
		Metrics: m,
	}, nil
}

// InvokeStructuredModel implements provider.Adapter via Ollama's format
// field, which constrains generation to the given JSON schema.
func (c *Client) InvokeStructuredModel(ctx context.Context, messages []ai.Message,
	schema map[string]any) (provider.StructuredResponse, error) {
	req := c.buildRequest(messages)
	if schema != nil {
		format, err := json.Marshal(schema)
		if err != nil {
			return provider.StructuredResponse{}, provider.NewErrorWithCause(
				provider.ErrorTypeBadRequest, err, "marshal output schema")
		}
		req.Format = format
	}

	reply, m, err := c.chat(ctx, req, messages)
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

// classify maps Ollama client errors into classified provider errors.
func classify(err error) *provider.Error {
	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		return provider.Classify(err, statusErr.StatusCode)
	}
	return provider.Classify(err, 0)
}
