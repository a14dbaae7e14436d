package storage

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"vision-qc/internal/domain/entity"
	"vision-qc/internal/domain/port"
)

type configRepository struct {
	db *gorm.DB
}

func (r *configRepository) Get(ctx context.Context, key string) (*entity.ConfigEntry, error) {
	if key == "" {
		return nil, fmt.Errorf("empty config key: %w", entity.ErrNotFound)
	}

	var rec configRecord
	err := r.db.WithContext(ctx).Where(&configRecord{Key: key}).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("config %q: %w", key, entity.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get config %q: %w", key, err)
	}
	return &entity.ConfigEntry{Key: rec.Key, Value: rec.Value, UpdatedAt: rec.UpdatedAt}, nil
}

// Put вставляет или перезаписывает настройку (last-write-wins).
func (r *configRepository) Put(ctx context.Context, entry entity.ConfigEntry) error {
	rec := configRecord{Key: entry.Key, Value: entry.Value, UpdatedAt: entry.UpdatedAt}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&rec).Error
	if err != nil {
		return fmt.Errorf("put config %q: %w", entry.Key, err)
	}
	return nil
}

// Проверка реализации интерфейса
var _ port.ConfigRepository = (*configRepository)(nil)
