package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusRecorder implements the Recorder interface using Prometheus
// metrics labeled by config key and served variation.
type PrometheusRecorder struct {
	generationsTotal   *prometheus.CounterVec
	tokensTotal        *prometheus.CounterVec
	generationDuration *prometheus.HistogramVec
	feedbackTotal      *prometheus.CounterVec
}

// NewPrometheusRecorder creates a recorder registered on the default
// Prometheus registry.
func NewPrometheusRecorder() *PrometheusRecorder {
	return NewPrometheusRecorderWith(prometheus.DefaultRegisterer)
}

// NewPrometheusRecorderWith creates a recorder registered on reg. Tests use
// this with a fresh registry to avoid duplicate-registration panics.
func NewPrometheusRecorderWith(reg prometheus.Registerer) *PrometheusRecorder {
	factory := promauto.With(reg)
	return &PrometheusRecorder{
		generationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ai_generations_total",
				Help: "Total number of AI generations by config, variation, and status",
			},
			[]string{"config_key", "variation_key", "status", "error_type"},
		),
		tokensTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ai_tokens_total",
				Help: "Total number of tokens used by AI generations",
			},
			[]string{"config_key", "variation_key", "direction"},
		),
		generationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ai_generation_duration_seconds",
				Help:    "Duration of AI generations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"config_key", "variation_key"},
		),
		feedbackTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ai_feedback_total",
				Help: "Total number of user feedback events by kind",
			},
			[]string{"config_key", "variation_key", "kind"},
		),
	}
}

// IncGeneration records one completed generation.
func (p *PrometheusRecorder) IncGeneration(configKey, variationKey, status, errorType string) {
	p.generationsTotal.WithLabelValues(configKey, variationKey, status, errorType).Inc()
}

// AddTokens records token usage for a generation.
func (p *PrometheusRecorder) AddTokens(configKey, variationKey, direction string, count int) {
	p.tokensTotal.WithLabelValues(configKey, variationKey, direction).Add(float64(count))
}

// ObserveDuration records the wall-clock duration of a generation.
func (p *PrometheusRecorder) ObserveDuration(configKey, variationKey string, duration time.Duration) {
	p.generationDuration.WithLabelValues(configKey, variationKey).Observe(duration.Seconds())
}

// IncFeedback records one user feedback event.
func (p *PrometheusRecorder) IncFeedback(configKey, variationKey, kind string) {
	p.feedbackTotal.WithLabelValues(configKey, variationKey, kind).Inc()
}
