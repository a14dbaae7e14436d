package storage

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"vision-qc/internal/domain/entity"
	"vision-qc/internal/domain/port"
)

type inspectionRepository struct {
	db *gorm.DB
}

func (r *inspectionRepository) Create(ctx context.Context, inspection *entity.Inspection) error {
	rec := newInspectionRecord(inspection)
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("create inspection: %w", err)
	}
	inspection.ID = rec.ID
	inspection.CreatedAt = rec.CreatedAt
	return nil
}

func (r *inspectionRepository) Get(ctx context.Context, id uint) (*entity.Inspection, error) {
	var rec inspectionRecord
	err := r.db.WithContext(ctx).First(&rec, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("inspection %d: %w", id, entity.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get inspection %d: %w", id, err)
	}
	insp := rec.toEntity()
	return &insp, nil
}

func (r *inspectionRepository) SaveReview(ctx context.Context, id uint, correction entity.Correction) error {
	var rec inspectionRecord
	err := r.db.WithContext(ctx).First(&rec, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("inspection %d: %w", id, entity.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("load inspection %d: %w", id, err)
	}

	rec.Status = string(entity.StatusReviewed)
	rec.FinalPrediction = &correction
	if err := r.db.WithContext(ctx).Save(&rec).Error; err != nil {
		return fmt.Errorf("save review for inspection %d: %w", id, err)
	}
	return nil
}

func (r *inspectionRepository) List(ctx context.Context, status entity.InspectionStatus) ([]entity.Inspection, error) {
	q := r.db.WithContext(ctx).Order("created_at DESC, id DESC")
	if status != "" {
		q = q.Where("status = ?", string(status))
	}
	return r.find(q)
}

func (r *inspectionRepository) Recent(ctx context.Context, limit int) ([]entity.Inspection, error) {
	q := r.db.WithContext(ctx).Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	return r.find(q)
}

func (r *inspectionRepository) Reviewed(ctx context.Context) ([]entity.Inspection, error) {
	q := r.db.WithContext(ctx).
		Where("status = ?", string(entity.StatusReviewed)).
		Order("id ASC")
	return r.find(q)
}

func (r *inspectionRepository) Stats(ctx context.Context) (entity.Stats, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	err := r.db.WithContext(ctx).
		Model(&inspectionRecord{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return entity.Stats{}, fmt.Errorf("count inspections: %w", err)
	}

	var stats entity.Stats
	for _, row := range rows {
		stats.Total += row.Count
		switch entity.InspectionStatus(row.Status) {
		case entity.StatusAutomated:
			stats.Automated = row.Count
		case entity.StatusPendingReview:
			stats.Pending = row.Count
		case entity.StatusReviewed:
			stats.Reviewed = row.Count
		}
	}
	return stats, nil
}

func (r *inspectionRepository) find(q *gorm.DB) ([]entity.Inspection, error) {
	var recs []inspectionRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list inspections: %w", err)
	}
	out := make([]entity.Inspection, 0, len(recs))
	for i := range recs {
		out = append(out, recs[i].toEntity())
	}
	return out, nil
}

// Проверка реализации интерфейса
var _ port.InspectionRepository = (*inspectionRepository)(nil)
