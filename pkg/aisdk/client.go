// Package aisdk is the top-level entry point: it resolves AI configurations
// against a flag source and constructs ready-to-use chats and judges from
// them. Provider backends register themselves on import:
//
//	import (
//	    _ "aiconfig/pkg/provider/anthropic"
//	    _ "aiconfig/pkg/provider/openai"
//	)
package aisdk

import (
	"context"

	"aiconfig/pkg/ai"
	"aiconfig/pkg/chat"
	"aiconfig/pkg/judge"
	"aiconfig/pkg/logx"
	"aiconfig/pkg/provider"
)

// Client resolves configurations and builds chat/judge instances over them.
type Client struct {
	ai     *ai.Client
	logger *logx.Logger
}

// New creates a client over the given flag source. Options configure the
// underlying resolution client (logger, metrics recorder, event sink).
func New(source ai.FlagSource, opts ...ai.Option) *Client {
	aiClient := ai.NewClient(source, opts...)
	return &Client{ai: aiClient, logger: aiClient.Logger()}
}

// Resolver exposes the underlying resolution client.
func (c *Client) Resolver() *ai.Client {
	return c.ai
}

// CompletionConfig resolves a completion-style configuration.
func (c *Client) CompletionConfig(ctx context.Context, key string, evalCtx ai.Context,
	def ai.CompletionDefaults, variables map[string]any) *ai.CompletionConfig {
	return c.ai.Completion(ctx, key, evalCtx, def, variables)
}

// AgentConfig resolves an agent-style configuration.
func (c *Client) AgentConfig(ctx context.Context, key string, evalCtx ai.Context,
	def ai.AgentDefaults, variables map[string]any) *ai.AgentConfig {
	return c.ai.Agent(ctx, key, evalCtx, def, variables)
}

// AgentGraph resolves several agent configurations at once, preserving the
// request order exactly.
func (c *Client) AgentGraph(ctx context.Context, requests []ai.AgentGraphRequest,
	evalCtx ai.Context) []*ai.AgentConfig {
	return c.ai.AgentGraph(ctx, requests, evalCtx)
}

// JudgeConfig resolves a judge-style configuration.
func (c *Client) JudgeConfig(ctx context.Context, key string, evalCtx ai.Context,
	def ai.JudgeDefaults) *ai.JudgeConfig {
	return c.ai.Judge(ctx, key, evalCtx, def)
}

// adapterFor builds the provider adapter a resolved config calls for.
func (c *Client) adapterFor(ctx context.Context, model *ai.ModelConfig,
	prov *ai.ProviderConfig) (provider.Adapter, bool) {
	name, cfg, err := provider.ConfigFrom(model, prov)
	if err != nil {
		c.logger.Warn("cannot build adapter: %v", err)
		return nil, false
	}
	adapter, err := provider.New(ctx, name, cfg, c.logger)
	if err != nil {
		c.logger.Warn("provider %q adapter not built: %v", name, err)
		return nil, false
	}
	return adapter, true
}

// CreateJudge resolves a judge configuration and binds it to its adapter.
// Returns ok=false when the configuration is disabled, names no usable
// provider, or carries no evaluation metric keys.
func (c *Client) CreateJudge(ctx context.Context, key string, evalCtx ai.Context,
	def ai.JudgeDefaults, variables map[string]any) (*judge.Judge, bool) {
	cfg := c.ai.Judge(ctx, key, evalCtx, def)
	if !cfg.Enabled {
		c.logger.Debug("judge config %q disabled", key)
		return nil, false
	}
	if len(cfg.EvaluationMetricKeys) == 0 {
		c.logger.Warn("judge config %q has no evaluation metric keys", key)
		return nil, false
	}
	adapter, ok := c.adapterFor(ctx, cfg.Model, cfg.Provider)
	if !ok {
		return nil, false
	}
	return judge.New(cfg, adapter, evalCtx, variables, c.logger), true
}

// CreateChat resolves a completion configuration and constructs a chat over
// it, including any judges the configuration attaches. Returns ok=false
// when the configuration is disabled or no adapter could be built; a
// disabled config never yields a chat. Judges that cannot be built are
// skipped with a warning rather than blocking the chat.
func (c *Client) CreateChat(ctx context.Context, key string, evalCtx ai.Context,
	def ai.CompletionDefaults, variables map[string]any) (*chat.Chat, bool) {
	cfg := c.ai.Completion(ctx, key, evalCtx, def, variables)
	if !cfg.Enabled {
		c.logger.Debug("completion config %q disabled, no chat", key)
		return nil, false
	}
	adapter, ok := c.adapterFor(ctx, cfg.Model, cfg.Provider)
	if !ok {
		return nil, false
	}

	var judges []chat.AttachedJudge
	for _, ref := range cfg.Judges {
		j, ok := c.CreateJudge(ctx, ref.Key, evalCtx, ai.JudgeDefaults{}, variables)
		if !ok {
			c.logger.Warn("judge %q not attached to chat %q", ref.Key, key)
			continue
		}
		judges = append(judges, chat.AttachedJudge{
			Key:          ref.Key,
			Judge:        j,
			SamplingRate: ref.SamplingRate,
		})
	}

	return chat.New(cfg, adapter, judges, c.logger), true
}
