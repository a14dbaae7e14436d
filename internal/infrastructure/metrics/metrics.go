// Package metrics экспортирует решения сортировки, дрейф и переобучение в Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"vision-qc/internal/domain/entity"
	"vision-qc/internal/domain/port"
)

// Collector набор метрик сервиса
type Collector struct {
	inspections   *prometheus.CounterVec
	confidence    prometheus.Histogram
	reviews       *prometheus.CounterVec
	driftScore    prometheus.Gauge
	driftDetected prometheus.Counter
	driftAlerts   prometheus.Counter
	retrains      *prometheus.CounterVec
}

// New создаёт метрики и регистрирует их в reg.
func New(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		inspections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inspections_total",
				Help: "Inspections by triage decision",
			},
			[]string{"status"},
		),
		confidence: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "inspection_max_confidence",
				Help:    "Maximum detector confidence per inspection",
				Buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
			},
		),
		reviews: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inspection_reviews_total",
				Help: "Human reviews by status before the review",
			},
			[]string{"prior_status"},
		),
		driftScore: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "drift_score",
				Help: "Baseline minus recent average confidence from the last drift check",
			},
		),
		driftDetected: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "drift_detected_total",
				Help: "Drift checks that flagged degradation",
			},
		),
		driftAlerts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "drift_alerts_total",
				Help: "Drift alerts written to the audit trail",
			},
		),
		retrains: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "retrain_runs_total",
				Help: "Retrain attempts by outcome",
			},
			[]string{"outcome"},
		),
	}

	for _, col := range []prometheus.Collector{
		c.inspections, c.confidence, c.reviews, c.driftScore, c.driftDetected, c.driftAlerts, c.retrains,
	} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Collector) InspectionTriaged(status entity.InspectionStatus, maxConfidence float64) {
	c.inspections.WithLabelValues(string(status)).Inc()
	c.confidence.Observe(maxConfidence)
}

func (c *Collector) ReviewSubmitted(priorStatus entity.InspectionStatus) {
	c.reviews.WithLabelValues(string(priorStatus)).Inc()
}

func (c *Collector) DriftChecked(report entity.DriftReport) {
	if report.Insufficient {
		return
	}
	c.driftScore.Set(report.DriftScore)
	if report.DriftDetected {
		c.driftDetected.Inc()
	}
	if report.AlertRecorded {
		c.driftAlerts.Inc()
	}
}

func (c *Collector) RetrainFinished(result entity.RetrainResult) {
	outcome := "failure"
	if result.Success {
		outcome = "success"
	}
	c.retrains.WithLabelValues(outcome).Inc()
}

var _ port.Metrics = (*Collector)(nil)
