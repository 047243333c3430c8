package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := NewPrometheusRecorderWith(reg)

	rec.IncGeneration("assistant", "v1", "success", "")
	rec.IncGeneration("assistant", "v1", "success", "")
	rec.IncGeneration("assistant", "v1", "error", "rate_limit")
	rec.AddTokens("assistant", "v1", "input", 30)
	rec.AddTokens("assistant", "v1", "output", 12)
	rec.ObserveDuration("assistant", "v1", 250*time.Millisecond)
	rec.IncFeedback("assistant", "v1", "positive")

	success := rec.generationsTotal.WithLabelValues("assistant", "v1", "success", "")
	assert.Equal(t, 2.0, testutil.ToFloat64(success))

	failed := rec.generationsTotal.WithLabelValues("assistant", "v1", "error", "rate_limit")
	assert.Equal(t, 1.0, testutil.ToFloat64(failed))

	input := rec.tokensTotal.WithLabelValues("assistant", "v1", "input")
	assert.Equal(t, 30.0, testutil.ToFloat64(input))

	positive := rec.feedbackTotal.WithLabelValues("assistant", "v1", "positive")
	assert.Equal(t, 1.0, testutil.ToFloat64(positive))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make(map[string]bool, len(families))
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	assert.True(t, names["ai_generations_total"])
	assert.True(t, names["ai_tokens_total"])
	assert.True(t, names["ai_generation_duration_seconds"])
	assert.True(t, names["ai_feedback_total"])
}

func TestNoopRecorder(t *testing.T) {
	rec := Nop()
	// Must be callable without side effects or panics.
	rec.IncGeneration("k", "v", "success", "")
	rec.AddTokens("k", "v", "input", 1)
	rec.ObserveDuration("k", "v", time.Second)
	rec.IncFeedback("k", "v", "negative")
}
