// Package observability exposes Prometheus metrics for the web frontend.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prediction outcome label values.
const (
	OutcomeSuccess    = "success"
	OutcomeFailure    = "failure"
	OutcomeRejected   = "rejected"
	OutcomeSuperseded = "superseded"
)

// Metrics holds the application metric collectors.
type Metrics struct {
	PredictionsTotal   *prometheus.CounterVec
	PredictionDuration prometheus.Histogram
	ReportsTotal       *prometheus.CounterVec
	UpstreamUp         prometheus.Gauge
}

// NewMetrics creates and registers the metric collectors on the given
// registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		PredictionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "respireai_predictions_total",
			Help: "Prediction submissions by outcome.",
		}, []string{"outcome"}),
		PredictionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "respireai_prediction_duration_seconds",
			Help:    "Wall-clock duration of prediction requests.",
			Buckets: prometheus.DefBuckets,
		}),
		ReportsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "respireai_reports_total",
			Help: "Exported reports by format.",
		}, []string{"format"}),
		UpstreamUp: factory.NewGauge(prometheus.GaugeOpts{
			Name: "respireai_inference_up",
			Help: "Whether the last inference health probe succeeded.",
		}),
	}
}
