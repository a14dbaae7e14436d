package storage

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"vision-qc/internal/domain/entity"
	"vision-qc/internal/domain/port"
)

type auditLog struct {
	db *gorm.DB
}

func (l *auditLog) Append(ctx context.Context, entry *entity.AuditEntry) error {
	rec := auditRecord{
		InspectionID: entry.InspectionID,
		ActionType:   string(entry.Action),
		Details:      entry.Details,
		Timestamp:    entry.Timestamp,
	}
	if err := l.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	entry.ID = rec.ID
	return nil
}

func (l *auditLog) List(ctx context.Context, limit int) ([]entity.AuditEntry, error) {
	q := l.db.WithContext(ctx).Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var recs []auditRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	out := make([]entity.AuditEntry, 0, len(recs))
	for i := range recs {
		out = append(out, recs[i].toEntity())
	}
	return out, nil
}

func (l *auditLog) Last(ctx context.Context, action entity.AuditAction) (*entity.AuditEntry, error) {
	var rec auditRecord
	err := l.db.WithContext(ctx).
		Where("action_type = ?", string(action)).
		Order("id DESC").
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("last %s entry: %w", action, err)
	}
	entry := rec.toEntity()
	return &entry, nil
}

// Проверка реализации интерфейса
var _ port.AuditLog = (*auditLog)(nil)
