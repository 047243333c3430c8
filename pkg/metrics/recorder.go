// Package metrics provides metrics recording for AI config generations.
package metrics

import "time"

// Recorder defines the interface for recording generation metrics. The
// tracker mirrors outcomes into a Recorder so hosts can watch per-variation
// behavior without consuming the analytics event stream.
type Recorder interface {
	// IncGeneration records one completed generation. status is "success"
	// or "error"; errorType is the classified error name, empty on success.
	IncGeneration(configKey, variationKey, status, errorType string)

	// AddTokens records token usage for a generation. direction is one of
	// "input", "output", "total".
	AddTokens(configKey, variationKey, direction string, count int)

	// ObserveDuration records the wall-clock duration of a generation.
	ObserveDuration(configKey, variationKey string, duration time.Duration)

	// IncFeedback records one user feedback event, kind "positive" or
	// "negative".
	IncFeedback(configKey, variationKey, kind string)
}

// NoopRecorder implements Recorder with no-op behavior for when metrics are
// disabled.
type NoopRecorder struct{}

// Nop returns a no-op metrics recorder that discards all metrics.
func Nop() Recorder {
	return &NoopRecorder{}
}

// IncGeneration does nothing in the no-op recorder.
func (n *NoopRecorder) IncGeneration(_, _, _, _ string) {}

// AddTokens does nothing in the no-op recorder.
func (n *NoopRecorder) AddTokens(_, _, _ string, _ int) {}

// ObserveDuration does nothing in the no-op recorder.
func (n *NoopRecorder) ObserveDuration(_, _ string, _ time.Duration) {}

// IncFeedback does nothing in the no-op recorder.
func (n *NoopRecorder) IncFeedback(_, _, _ string) {}
