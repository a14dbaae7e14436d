package storage

import (
	"time"

	"vision-qc/internal/domain/entity"
)

// inspectionRecord строка таблицы inspections
type inspectionRecord struct {
	ID              uint               `gorm:"primaryKey"`
	ImageFilename   string
	Prediction      []entity.Detection `gorm:"serializer:json"`
	Confidence      float64
	ThresholdUsed   float64
	Status          string             `gorm:"type:varchar(20);index"`
	FinalPrediction *entity.Correction `gorm:"serializer:json"`
	CreatedAt       time.Time          `gorm:"index"`
}

func (inspectionRecord) TableName() string { return "inspections" }

func newInspectionRecord(i *entity.Inspection) *inspectionRecord {
	return &inspectionRecord{
		ID:              i.ID,
		ImageFilename:   i.SourceRef,
		Prediction:      i.Predictions,
		Confidence:      i.MaxConfidence,
		ThresholdUsed:   i.ThresholdUsed,
		Status:          string(i.Status),
		FinalPrediction: i.FinalPredictions,
		CreatedAt:       i.CreatedAt,
	}
}

func (r *inspectionRecord) toEntity() entity.Inspection {
	return entity.Inspection{
		ID:               r.ID,
		SourceRef:        r.ImageFilename,
		Predictions:      r.Prediction,
		MaxConfidence:    r.Confidence,
		ThresholdUsed:    r.ThresholdUsed,
		Status:           entity.InspectionStatus(r.Status),
		FinalPredictions: r.FinalPrediction,
		CreatedAt:        r.CreatedAt,
	}
}

// configRecord строка таблицы system_configs
type configRecord struct {
	Key       string `gorm:"primaryKey"`
	Value     string
	UpdatedAt time.Time
}

func (configRecord) TableName() string { return "system_configs" }

// auditRecord строка таблицы audit_logs. Обновлять и удалять строки некому: репозиторий умеет только добавлять.
type auditRecord struct {
	ID           uint   `gorm:"primaryKey"`
	InspectionID *uint  `gorm:"index"`
	ActionType   string `gorm:"type:varchar(32);index"`
	Details      string
	Timestamp    time.Time `gorm:"index"`
}

func (auditRecord) TableName() string { return "audit_logs" }

func (r *auditRecord) toEntity() entity.AuditEntry {
	return entity.AuditEntry{
		ID:           r.ID,
		InspectionID: r.InspectionID,
		Action:       entity.AuditAction(r.ActionType),
		Details:      r.Details,
		Timestamp:    r.Timestamp,
	}
}
