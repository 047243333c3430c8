package ai

import (
	"context"

	"aiconfig/pkg/logx"
	"aiconfig/pkg/metrics"
)

// Client resolves AI configurations against a FlagSource. Resolution never
// fails: any source error or malformed payload degrades to the caller's
// defaults, at worst yielding a disabled config. Every resolution constructs
// a fresh Tracker and emits one configuration-served event.
type Client struct {
	source   FlagSource
	logger   *logx.Logger
	recorder metrics.Recorder
	sink     EventSink
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger used by the client and its trackers.
func WithLogger(logger *logx.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithRecorder mirrors tracker outcomes into a metrics recorder.
func WithRecorder(recorder metrics.Recorder) Option {
	return func(c *Client) { c.recorder = recorder }
}

// WithEventSink additionally persists tracker events to a local sink.
func WithEventSink(sink EventSink) Option {
	return func(c *Client) { c.sink = sink }
}

// NewClient creates a resolution client over the given flag source.
func NewClient(source FlagSource, opts ...Option) *Client {
	c := &Client{
		source:   source,
		logger:   logx.NewLogger("ai"),
		recorder: metrics.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Logger returns the client's logger, for components built on top of it.
func (c *Client) Logger() *logx.Logger {
	return c.logger
}

// resolve evaluates the flag and stamps the variation identity. On source
// failure the defaults are served with an empty variation key.
func (c *Client) resolve(ctx context.Context, key string, evalCtx Context,
	defaultValue map[string]any) VariationDetail {
	detail, err := c.source.VariationDetail(ctx, key, evalCtx, defaultValue)
	if err != nil {
		c.logger.Warn("evaluation of %q failed, serving defaults: %v", key, err)
		return VariationDetail{Value: defaultValue, Reason: "ERROR"}
	}
	return detail
}

func (c *Client) newTracker(key string, detail VariationDetail, evalCtx Context) *Tracker {
	t := newTracker(c.source, c.logger, c.recorder, c.sink,
		key, detail.VariationKey, detail.Version, evalCtx)
	t.emit(EventConfigServed, 1, nil)
	return t
}

// Completion resolves a completion-style configuration.
func (c *Client) Completion(ctx context.Context, key string, evalCtx Context,
	def CompletionDefaults, variables map[string]any) *CompletionConfig {
	detail := c.resolve(ctx, key, evalCtx, def.toVariation())
	vars := templateVariables(variables, evalCtx)
	cfg := parseCompletion(detail.Value, def, vars, c.logger)
	cfg.VariationKey = detail.VariationKey
	cfg.Version = detail.Version
	cfg.Tracker = c.newTracker(key, detail, evalCtx)
	return &cfg
}

// Agent resolves an agent-style configuration.
func (c *Client) Agent(ctx context.Context, key string, evalCtx Context,
	def AgentDefaults, variables map[string]any) *AgentConfig {
	detail := c.resolve(ctx, key, evalCtx, def.toVariation())
	vars := templateVariables(variables, evalCtx)
	cfg := parseAgent(detail.Value, def, vars, c.logger)
	cfg.VariationKey = detail.VariationKey
	cfg.Version = detail.Version
	cfg.Tracker = c.newTracker(key, detail, evalCtx)
	return &cfg
}

// Judge resolves a judge-style configuration. Judge messages keep their raw
// templates; interpolation happens at evaluation time.
func (c *Client) Judge(ctx context.Context, key string, evalCtx Context,
	def JudgeDefaults) *JudgeConfig {
	detail := c.resolve(ctx, key, evalCtx, def.toVariation())
	cfg := parseJudge(detail.Value, def, c.logger)
	cfg.VariationKey = detail.VariationKey
	cfg.Version = detail.Version
	cfg.Tracker = c.newTracker(key, detail, evalCtx)
	return &cfg
}

// AgentGraphRequest is one entry of a multi-agent resolution.
type AgentGraphRequest struct {
	Key          string
	DefaultValue AgentDefaults
	Variables    map[string]any
}

// AgentGraph resolves several agent configurations in one call. The result
// preserves the request order exactly: result[i] always corresponds to
// requests[i], including duplicate keys.
func (c *Client) AgentGraph(ctx context.Context, requests []AgentGraphRequest,
	evalCtx Context) []*AgentConfig {
	out := make([]*AgentConfig, len(requests))
	for i, req := range requests {
		out[i] = c.Agent(ctx, req.Key, evalCtx, req.DefaultValue, req.Variables)
	}
	return out
}
