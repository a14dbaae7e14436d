package entity

import "time"

// AuditAction тип события в журнале аудита.
type AuditAction string

const (
	ActionThresholdChange AuditAction = "threshold_change"
	ActionHumanReview     AuditAction = "human_review"
	ActionConfigChange    AuditAction = "config_change"
	ActionDriftAlert      AuditAction = "drift_alert"
	ActionTrainStart      AuditAction = "model_train_start"
	ActionTrainComplete   AuditAction = "model_train_complete"
	ActionTrainFailed     AuditAction = "model_train_failed"
)

// AuditEntry неизменяемая запись журнала. ID задаёт порядок записей.
type AuditEntry struct {
	ID           uint        `json:"id"`
	InspectionID *uint       `json:"inspection_id,omitempty"`
	Action       AuditAction `json:"action_type"`
	Details      string      `json:"details"`
	Timestamp    time.Time   `json:"timestamp"`
}
