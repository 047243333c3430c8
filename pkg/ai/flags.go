package ai

import (
	"context"
	"sync"
)

// VariationDetail is the result of evaluating a configuration flag: the raw
// served payload plus the variation identity the backend stamped on it.
type VariationDetail struct {
	Value        map[string]any
	VariationKey string
	Version      int
	Reason       string
}

// FlagSource is the capability this package requires from a feature
// management backend: serve a JSON variation for a flag key and context, and
// accept analytics events. Any backend satisfying these two operations can
// drive resolution.
type FlagSource interface {
	// VariationDetail evaluates flagKey for evalCtx and returns the served
	// payload. defaultValue is what the backend should fall back to when the
	// flag is missing or evaluation fails.
	VariationDetail(ctx context.Context, flagKey string, evalCtx Context,
		defaultValue map[string]any) (VariationDetail, error)

	// TrackEvent records one analytics event against evalCtx.
	TrackEvent(name string, evalCtx Context, data map[string]any, metricValue float64) error
}

// TestSource is an in-memory FlagSource for tests and local development. It
// serves fixed variations per flag key and captures every tracked event.
type TestSource struct {
	mu         sync.Mutex
	variations map[string]VariationDetail
	events     []TrackedEvent
}

// TrackedEvent is one event captured by a TestSource.
type TrackedEvent struct {
	Name        string
	ContextKey  string
	Data        map[string]any
	MetricValue float64
}

// NewTestSource returns an empty TestSource; flags resolve to their defaults
// until variations are set.
func NewTestSource() *TestSource {
	return &TestSource{variations: make(map[string]VariationDetail)}
}

// SetVariation fixes the payload served for flagKey.
func (s *TestSource) SetVariation(flagKey string, detail VariationDetail) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.variations[flagKey] = detail
}

// VariationDetail implements FlagSource.
func (s *TestSource) VariationDetail(_ context.Context, flagKey string, _ Context,
	defaultValue map[string]any) (VariationDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if detail, ok := s.variations[flagKey]; ok {
		return detail, nil
	}
	return VariationDetail{Value: defaultValue, Reason: "FALLTHROUGH_DEFAULT"}, nil
}

// TrackEvent implements FlagSource.
func (s *TestSource) TrackEvent(name string, evalCtx Context, data map[string]any, metricValue float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, TrackedEvent{
		Name:        name,
		ContextKey:  evalCtx.Key,
		Data:        data,
		MetricValue: metricValue,
	})
	return nil
}

// Events returns a copy of all captured events.
func (s *TestSource) Events() []TrackedEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]TrackedEvent, len(s.events))
	copy(out, s.events)
	return out
}

// EventsNamed returns captured events matching name, in capture order.
func (s *TestSource) EventsNamed(name string) []TrackedEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []TrackedEvent
	for _, e := range s.events {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}
