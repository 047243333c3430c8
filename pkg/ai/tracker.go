package ai

import (
	"context"
	"errors"
	"time"

	"aiconfig/pkg/logx"
	"aiconfig/pkg/metrics"
)

// Analytics event names emitted by the Tracker.
const (
	EventConfigServed      = "$ai:config"
	EventGeneration        = "$ai:generation"
	EventGenerationSuccess = "$ai:generation:success"
	EventGenerationError   = "$ai:generation:error"
	EventDurationTotal     = "$ai:duration:total"
	EventTokensTotal       = "$ai:tokens:total"
	EventTokensInput       = "$ai:tokens:input"
	EventTokensOutput      = "$ai:tokens:output"
	EventTimeToFirstToken  = "$ai:ttf"
	EventFeedbackPositive  = "$ai:feedback:user:positive"
	EventFeedbackNegative  = "$ai:feedback:user:negative"
)

// TokenUsage is the token consumption of one or more generations.
type TokenUsage struct {
	Total  int
	Input  int
	Output int
}

// Add accumulates u into t.
func (t *TokenUsage) Add(u TokenUsage) {
	t.Total += u.Total
	t.Input += u.Input
	t.Output += u.Output
}

// Metrics is the measurable outcome of one model invocation.
type Metrics struct {
	Usage            TokenUsage
	Latency          time.Duration
	TimeToFirstToken time.Duration
}

// MetricsCarrier is implemented by results that expose invocation metrics,
// letting TrackMetricsOf extract and record them automatically.
type MetricsCarrier interface {
	AIMetrics() Metrics
}

// Feedback is a user's sentiment about a generation.
type Feedback string

const (
	FeedbackPositive Feedback = "positive"
	FeedbackNegative Feedback = "negative"
)

// EvalScore is one judge-assigned score for a single evaluation metric.
type EvalScore struct {
	Score     float64
	Reasoning string
}

// Summary is the read-only aggregate of everything a Tracker recorded.
type Summary struct {
	// Outcome is nil until a success or error is recorded; afterwards it
	// reflects the most recent of the two (last write wins).
	Outcome          *bool
	SuccessCount     int
	ErrorCount       int
	Usage            TokenUsage
	Duration         time.Duration
	TimeToFirstToken time.Duration
	Feedback         *Feedback
	// JudgeScores maps evaluation metric key to its score. A nil entry
	// means a judge ran but produced no usable score for that key.
	JudgeScores map[string]*EvalScore
}

// EventSink optionally persists tracker events locally, in addition to the
// flag source's analytics stream. Strictly best-effort.
type EventSink interface {
	RecordEvent(e Event) error
}

// Event is one tracker emission handed to an EventSink.
type Event struct {
	Name         string
	FlagKey      string
	VariationKey string
	Version      int
	ContextKey   string
	MetricValue  float64
	Data         map[string]any
}

// Tracker accumulates telemetry for one resolved configuration. One Tracker
// exists per resolution; it is not safe for concurrent mutation — callers
// running parallel turns must resolve separate configs. Every emission to
// the flag source is best-effort: failures are logged, never propagated into
// the AI-invocation path.
type Tracker struct {
	source   FlagSource
	logger   *logx.Logger
	recorder metrics.Recorder
	sink     EventSink

	flagKey      string
	variationKey string
	version      int
	evalCtx      Context

	summary Summary
}

func newTracker(source FlagSource, logger *logx.Logger, recorder metrics.Recorder,
	sink EventSink, flagKey, variationKey string, version int, evalCtx Context) *Tracker {
	if recorder == nil {
		recorder = metrics.Nop()
	}
	return &Tracker{
		source:       source,
		logger:       logger,
		recorder:     recorder,
		sink:         sink,
		flagKey:      flagKey,
		variationKey: variationKey,
		version:      version,
		evalCtx:      evalCtx,
	}
}

// FlagKey returns the configuration key this tracker is scoped to.
func (t *Tracker) FlagKey() string { return t.flagKey }

// VariationKey returns the served variation key.
func (t *Tracker) VariationKey() string { return t.variationKey }

// Version returns the served variation version.
func (t *Tracker) Version() int { return t.version }

func (t *Tracker) emit(name string, metricValue float64, extra map[string]any) {
	data := map[string]any{
		"configKey":    t.flagKey,
		"variationKey": t.variationKey,
		"version":      t.version,
	}
	for k, v := range extra {
		data[k] = v
	}
	if err := t.source.TrackEvent(name, t.evalCtx, data, metricValue); err != nil {
		t.logger.Warn("event %s not delivered: %v", name, err)
	}
	if t.sink != nil {
		err := t.sink.RecordEvent(Event{
			Name:         name,
			FlagKey:      t.flagKey,
			VariationKey: t.variationKey,
			Version:      t.version,
			ContextKey:   t.evalCtx.Key,
			MetricValue:  metricValue,
			Data:         data,
		})
		if err != nil {
			t.logger.Debug("event %s not persisted: %v", name, err)
		}
	}
}

// TrackSuccess records a successful generation. Outcome is last-write-wins;
// the success counter is additive.
func (t *Tracker) TrackSuccess() {
	outcome := true
	t.summary.Outcome = &outcome
	t.summary.SuccessCount++
	t.emit(EventGeneration, 1, nil)
	t.emit(EventGenerationSuccess, 1, nil)
	t.recorder.IncGeneration(t.flagKey, t.variationKey, "success", "")
}

// TrackError records a failed generation. Outcome is last-write-wins; the
// error counter is additive.
func (t *Tracker) TrackError() {
	t.trackErrorTyped("")
}

func (t *Tracker) trackErrorTyped(errorType string) {
	outcome := false
	t.summary.Outcome = &outcome
	t.summary.ErrorCount++
	t.emit(EventGeneration, 1, nil)
	t.emit(EventGenerationError, 1, nil)
	t.recorder.IncGeneration(t.flagKey, t.variationKey, "error", errorType)
}

// TrackTokens records token usage, accumulating additively across calls.
func (t *Tracker) TrackTokens(u TokenUsage) {
	t.summary.Usage.Add(u)
	if u.Total > 0 {
		t.emit(EventTokensTotal, float64(u.Total), nil)
		t.recorder.AddTokens(t.flagKey, t.variationKey, "total", u.Total)
	}
	if u.Input > 0 {
		t.emit(EventTokensInput, float64(u.Input), nil)
		t.recorder.AddTokens(t.flagKey, t.variationKey, "input", u.Input)
	}
	if u.Output > 0 {
		t.emit(EventTokensOutput, float64(u.Output), nil)
		t.recorder.AddTokens(t.flagKey, t.variationKey, "output", u.Output)
	}
}

// TrackDuration records wall-clock generation time. Callers invoke it once
// per measured unit of work; the summary keeps the most recent measurement,
// while every call still emits its own duration event.
func (t *Tracker) TrackDuration(d time.Duration) {
	t.summary.Duration = d
	t.emit(EventDurationTotal, float64(d.Milliseconds()), nil)
	t.recorder.ObserveDuration(t.flagKey, t.variationKey, d)
}

// TrackTimeToFirstToken records the latency until the first streamed token.
func (t *Tracker) TrackTimeToFirstToken(d time.Duration) {
	t.summary.TimeToFirstToken = d
	t.emit(EventTimeToFirstToken, float64(d.Milliseconds()), nil)
}

// TrackFeedback records user sentiment about the generation.
func (t *Tracker) TrackFeedback(kind Feedback) {
	t.summary.Feedback = &kind
	switch kind {
	case FeedbackPositive:
		t.emit(EventFeedbackPositive, 1, nil)
	case FeedbackNegative:
		t.emit(EventFeedbackNegative, 1, nil)
	default:
		t.logger.Warn("unrecognized feedback kind %q not tracked", kind)
		return
	}
	t.recorder.IncFeedback(t.flagKey, t.variationKey, string(kind))
}

// TrackEvalScores records judge-assigned scores, one event per metric key.
func (t *Tracker) TrackEvalScores(scores map[string]EvalScore) {
	if t.summary.JudgeScores == nil {
		t.summary.JudgeScores = make(map[string]*EvalScore, len(scores))
	}
	for key, score := range scores {
		s := score
		t.summary.JudgeScores[key] = &s
		t.emit(key, score.Score, map[string]any{"reasoning": score.Reasoning})
	}
}

// TrackEvalMissing records that a judge ran for the given metric keys but
// produced no usable score. Missing scores emit no events; they only appear
// in the summary so callers can tell "not scored" from "never evaluated".
func (t *Tracker) TrackEvalMissing(metricKeys ...string) {
	if t.summary.JudgeScores == nil {
		t.summary.JudgeScores = make(map[string]*EvalScore, len(metricKeys))
	}
	for _, key := range metricKeys {
		if _, exists := t.summary.JudgeScores[key]; !exists {
			t.summary.JudgeScores[key] = nil
		}
	}
}

// TrackMetrics records a full invocation outcome in one call: duration,
// token usage, and time-to-first-token when present.
func (t *Tracker) TrackMetrics(m Metrics) {
	if m.Latency > 0 {
		t.TrackDuration(m.Latency)
	}
	if m.Usage != (TokenUsage{}) {
		t.TrackTokens(m.Usage)
	}
	if m.TimeToFirstToken > 0 {
		t.TrackTimeToFirstToken(m.TimeToFirstToken)
	}
}

// Summary returns a copy of everything recorded so far.
func (t *Tracker) Summary() Summary {
	out := t.summary
	if t.summary.JudgeScores != nil {
		out.JudgeScores = make(map[string]*EvalScore, len(t.summary.JudgeScores))
		for k, v := range t.summary.JudgeScores {
			if v == nil {
				out.JudgeScores[k] = nil
				continue
			}
			s := *v
			out.JudgeScores[k] = &s
		}
	}
	return out
}

// TrackMetricsOf runs one unit of work and records its outcome on the
// tracker: wall-clock duration, success or error from the returned error,
// and whatever metrics the result itself carries. Exactly one attempt, no
// retry. A canceled or expired context records nothing, so an interrupted
// call can never masquerade as a real outcome.
func TrackMetricsOf[T MetricsCarrier](ctx context.Context, t *Tracker,
	work func(context.Context) (T, error)) (T, error) {
	start := time.Now()
	result, err := work(ctx)
	elapsed := time.Since(start)

	if ctx.Err() != nil {
		return result, err
	}

	t.TrackDuration(elapsed)
	if err != nil {
		t.trackErrorTyped(errorTypeName(err))
		return result, err
	}
	t.TrackSuccess()

	m := result.AIMetrics()
	if m.Usage != (TokenUsage{}) {
		t.TrackTokens(m.Usage)
	}
	if m.TimeToFirstToken > 0 {
		t.TrackTimeToFirstToken(m.TimeToFirstToken)
	}
	return result, nil
}

// errorClassifier lets provider errors surface their classification without
// this package importing the provider package.
type errorClassifier interface {
	ErrorType() string
}

func errorTypeName(err error) string {
	var classified errorClassifier
	if errors.As(err, &classified) {
		return classified.ErrorType()
	}
	return "unknown"
}
