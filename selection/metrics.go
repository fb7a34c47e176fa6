package selection

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "studentperf"

// Metrics holds the Prometheus metrics of a selection run.
//
// Safe for concurrent use.
type Metrics struct {
	// CandidatesTotal counts evaluated candidates by outcome (ok, failed, skipped).
	CandidatesTotal *prometheus.CounterVec

	// CandidateDurationSeconds measures search + refit + scoring per candidate.
	CandidateDurationSeconds *prometheus.HistogramVec

	// TestR2 is the held-out R² of each completed candidate.
	TestR2 *prometheus.GaugeVec

	// FitsTotal counts estimator fits, cross-validation folds included.
	FitsTotal *prometheus.CounterVec

	// BestScore is the R² of the selected model.
	BestScore prometheus.Gauge
}

// NewMetrics creates the selection metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		CandidatesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "selection",
				Name:      "candidates_total",
				Help:      "Evaluated candidates by outcome",
			},
			[]string{"candidate", "status"},
		),
		CandidateDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: "selection",
				Name:      "candidate_duration_seconds",
				Help:      "Time spent tuning, refitting and scoring one candidate",
				Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
			},
			[]string{"candidate"},
		),
		TestR2: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: "selection",
				Name:      "test_r2",
				Help:      "Held-out R² of each candidate",
			},
			[]string{"candidate"},
		),
		FitsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "selection",
				Name:      "fits_total",
				Help:      "Estimator fits including cross-validation folds",
			},
			[]string{"candidate"},
		),
		BestScore: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: "selection",
				Name:      "best_score",
				Help:      "Held-out R² of the selected model",
			},
		),
	}
}
