package port

import "vision-qc/internal/domain/entity"

// Metrics счётчики решений системы
type Metrics interface {
	InspectionTriaged(status entity.InspectionStatus, maxConfidence float64)
	ReviewSubmitted(priorStatus entity.InspectionStatus)
	DriftChecked(report entity.DriftReport)
	RetrainFinished(result entity.RetrainResult)
}

// NopMetrics ничего не считает
type NopMetrics struct{}

func (NopMetrics) InspectionTriaged(entity.InspectionStatus, float64) {}
func (NopMetrics) ReviewSubmitted(entity.InspectionStatus)            {}
func (NopMetrics) DriftChecked(entity.DriftReport)                    {}
func (NopMetrics) RetrainFinished(entity.RetrainResult)               {}
