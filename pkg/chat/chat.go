// Package chat maintains a stateful conversation over a resolved AI
// configuration: accumulated history, turn-by-turn invocation through a
// provider adapter, and synchronous judge evaluation of each turn.
package chat

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"github.com/google/uuid"

	"aiconfig/pkg/ai"
	"aiconfig/pkg/judge"
	"aiconfig/pkg/logx"
	"aiconfig/pkg/provider"
)

// ErrChatClosed is returned by operations on a closed chat.
var ErrChatClosed = errors.New("chat is closed")

// State is the lifecycle position of a chat.
type State int8

const (
	// StateCreated means no turn has run yet.
	StateCreated State = iota
	// StateInvoking means a turn is in flight.
	StateInvoking
	// StateTurnComplete means the last turn finished, successfully or not.
	StateTurnComplete
	// StateClosed means resources are released; no further turns run.
	StateClosed
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateInvoking:
		return "invoking"
	case StateTurnComplete:
		return "turn_complete"
	case StateClosed:
		return "closed"
	default:
		return "invalid"
	}
}

// AttachedJudge couples a judge with the sampling rate the chat's
// configuration assigned to it.
type AttachedJudge struct {
	Key          string
	Judge        *judge.Judge
	SamplingRate float64
}

// Evaluation is one judge's verdict on a turn. Result is nil when the judge
// failed or its reply was unparsable; the turn itself is unaffected.
type Evaluation struct {
	JudgeKey string
	Result   *judge.Result
}

// Response is the outcome of one successful turn.
type Response struct {
	Message     ai.Message
	Metrics     ai.Metrics
	Evaluations []Evaluation
}

// Chat is a stateful conversation. One Chat is owned by one logical
// request flow; it is not safe for concurrent use.
type Chat struct {
	id      string
	config  *ai.CompletionConfig
	adapter provider.Adapter
	judges  []AttachedJudge
	history []ai.Message
	state   State
	logger  *logx.Logger

	// sample drives judge sampling decisions; replaced in tests.
	sample func() float64
}

// New creates a chat over a resolved configuration and its adapter. The
// config's messages are prepended to the history on every invocation.
func New(cfg *ai.CompletionConfig, adapter provider.Adapter, judges []AttachedJudge,
	logger *logx.Logger) *Chat {
	return &Chat{
		id:      uuid.NewString(),
		config:  cfg,
		adapter: adapter,
		judges:  judges,
		state:   StateCreated,
		logger:  logger.WithComponent("chat"),
		sample:  rand.Float64,
	}
}

// ID returns the chat's unique instance identifier.
func (c *Chat) ID() string {
	return c.id
}

// State returns the chat's lifecycle state.
func (c *Chat) State() State {
	return c.state
}

// Config returns the resolved configuration backing this chat.
func (c *Chat) Config() *ai.CompletionConfig {
	return c.config
}

// Tracker returns the tracker scoped to this chat's resolution.
func (c *Chat) Tracker() *ai.Tracker {
	return c.config.Tracker
}

// Messages returns a copy of the conversation so far. With includeConfig
// set, the configuration's own messages are prepended, exactly as the model
// sees them.
func (c *Chat) Messages(includeConfig bool) []ai.Message {
	var out []ai.Message
	if includeConfig {
		out = append(out, c.config.Messages...)
	}
	return append(out, c.history...)
}

// AppendMessages adds messages to the history without invoking the model,
// for replaying prior conversation into a fresh chat.
func (c *Chat) AppendMessages(messages ...ai.Message) error {
	if c.state == StateClosed {
		return fmt.Errorf("append messages: %w", ErrChatClosed)
	}
	c.history = append(c.history, messages...)
	return nil
}

// Invoke runs one turn: the user input joins the history, the full
// accumulated conversation goes to the model, and the assistant reply is
// appended on success. The user message is never rolled back — a failed
// turn leaves it in place, giving at-least-once semantics on retry. After a
// successful turn every attached judge evaluates the input/output pair
// synchronously; judge failures are logged and recorded as missing scores,
// never failing the turn.
func (c *Chat) Invoke(ctx context.Context, input string) (*Response, error) {
	if c.state == StateClosed {
		return nil, fmt.Errorf("invoke: %w", ErrChatClosed)
	}

	c.history = append(c.history, ai.Message{Role: ai.RoleUser, Content: input})
	c.state = StateInvoking

	full := c.Messages(true)
	resp, err := ai.TrackMetricsOf(ctx, c.config.Tracker,
		func(ctx context.Context) (provider.ChatResponse, error) {
			return c.adapter.InvokeModel(ctx, full)
		})
	c.state = StateTurnComplete
	if err != nil {
		return nil, fmt.Errorf("invoke model: %w", err)
	}

	c.history = append(c.history, resp.Message)

	out := &Response{Message: resp.Message, Metrics: resp.Metrics}
	for _, attached := range c.judges {
		if evaluation, ok := c.runJudge(ctx, attached, input, resp.Message.Content); ok {
			out.Evaluations = append(out.Evaluations, evaluation)
		}
	}
	return out, nil
}

// runJudge evaluates one turn with one judge, honoring its sampling rate.
// The produced scores are recorded on the chat's tracker so the variation
// under test carries its own evaluation metrics. Returns ok=false when the
// turn was sampled out.
func (c *Chat) runJudge(ctx context.Context, attached AttachedJudge,
	input, output string) (Evaluation, bool) {
	if attached.SamplingRate < 1 && c.sample() >= attached.SamplingRate {
		c.logger.Debug("judge %s sampled out at rate %.2f", attached.Key, attached.SamplingRate)
		return Evaluation{}, false
	}

	result, err := attached.Judge.Evaluate(ctx, input, output)
	if err != nil {
		var parseErr *judge.ParseError
		if errors.As(err, &parseErr) {
			c.logger.Warn("judge %s reply unparsable, scores missing: %v", attached.Key, err)
		} else {
			c.logger.Warn("judge %s evaluation failed, scores missing: %v", attached.Key, err)
		}
		c.config.Tracker.TrackEvalMissing(attached.Judge.MetricKeys()...)
		return Evaluation{JudgeKey: attached.Key}, true
	}

	c.config.Tracker.TrackEvalScores(result.Evals)
	if !result.Success {
		var missing []string
		for _, key := range attached.Judge.MetricKeys() {
			if _, ok := result.Evals[key]; !ok {
				missing = append(missing, key)
			}
		}
		c.config.Tracker.TrackEvalMissing(missing...)
	}
	return Evaluation{JudgeKey: attached.Key, Result: result}, true
}

// Close releases the adapter and every attached judge. Further invocations
// fail with ErrChatClosed. Close is idempotent.
func (c *Chat) Close() error {
	if c.state == StateClosed {
		return nil
	}
	c.state = StateClosed

	var errs []error
	if err := c.adapter.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close adapter: %w", err))
	}
	for _, attached := range c.judges {
		if err := attached.Judge.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close judge %s: %w", attached.Key, err))
		}
	}
	return errors.Join(errs...)
}
