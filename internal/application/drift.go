package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"vision-qc/internal/domain/entity"
	"vision-qc/internal/domain/port"
)

// DriftMonitor сравнивает среднюю уверенность последних инспекций с предыдущими.
type DriftMonitor struct {
	store   port.Store
	audit   *AuditTrail
	clock   port.Clock
	params  entity.DriftParams
	metrics port.Metrics
	log     *zap.Logger
}

// NewDriftMonitor создаёт монитор с параметрами params.
func NewDriftMonitor(store port.Store, audit *AuditTrail, clock port.Clock, params entity.DriftParams, metrics port.Metrics, log *zap.Logger) *DriftMonitor {
	if metrics == nil {
		metrics = port.NopMetrics{}
	}
	return &DriftMonitor{
		store:   store,
		audit:   audit,
		clock:   clock,
		params:  params,
		metrics: metrics,
		log:     log.Named("drift"),
	}
}

// Detect проверяет дрейф с параметрами монитора.
func (m *DriftMonitor) Detect(ctx context.Context) (entity.DriftReport, error) {
	return m.DetectWith(ctx, m.params)
}

// DetectWith проверяет дрейф. Учитывается только падение уверенности.
// Алерт пишется не чаще раза за Cooldown; проверка и запись не атомарны,
// при параллельных вызовах возможен редкий двойной алерт.
func (m *DriftMonitor) DetectWith(ctx context.Context, p entity.DriftParams) (entity.DriftReport, error) {
	inspections, err := m.store.Inspections().Recent(ctx, p.RecentWindow)
	if err != nil {
		return entity.DriftReport{}, fmt.Errorf("read recent inspections: %w", err)
	}

	n := len(inspections)
	if n < p.MinSamples || n <= p.RecentSplit || p.RecentSplit <= 0 {
		report := entity.DriftReport{
			SampleCount:  n,
			Insufficient: true,
			Message:      fmt.Sprintf("Insufficient data for drift analysis (need at least %d scans)", p.MinSamples),
		}
		m.metrics.DriftChecked(report)
		return report, nil
	}

	recentAvg := meanConfidence(inspections[:p.RecentSplit])
	baselineAvg := meanConfidence(inspections[p.RecentSplit:])
	score := baselineAvg - recentAvg

	report := entity.DriftReport{
		DriftDetected: score > p.DropThreshold,
		DriftScore:    score,
		RecentAvg:     recentAvg,
		BaselineAvg:   baselineAvg,
		SampleCount:   n,
	}

	if report.DriftDetected {
		recorded, err := m.raiseAlert(ctx, p, report)
		if err != nil {
			return report, err
		}
		report.AlertRecorded = recorded
	}

	m.metrics.DriftChecked(report)
	return report, nil
}

func (m *DriftMonitor) raiseAlert(ctx context.Context, p entity.DriftParams, report entity.DriftReport) (bool, error) {
	last, err := m.audit.Last(ctx, entity.ActionDriftAlert)
	if err != nil {
		return false, fmt.Errorf("read last drift alert: %w", err)
	}
	if last != nil && m.clock.Now().Sub(last.Timestamp) <= p.Cooldown {
		m.log.Debug("drift alert suppressed by cooldown", zap.Time("last_alert", last.Timestamp))
		return false, nil
	}

	details := fmt.Sprintf("CRITICAL: Performance drift detected. Confidence dropped from %.2f (baseline) to %.2f (recent).",
		report.BaselineAvg, report.RecentAvg)
	if _, err := m.audit.Record(ctx, entity.ActionDriftAlert, nil, details); err != nil {
		return false, fmt.Errorf("record drift alert: %w", err)
	}

	m.log.Warn("drift detected",
		zap.Float64("baseline_avg", report.BaselineAvg),
		zap.Float64("recent_avg", report.RecentAvg),
		zap.Float64("score", report.DriftScore))
	return true, nil
}

func meanConfidence(items []entity.Inspection) float64 {
	if len(items) == 0 {
		return 0
	}
	sum := 0.0
	for _, it := range items {
		sum += it.MaxConfidence
	}
	return sum / float64(len(items))
}
