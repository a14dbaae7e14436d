package port

import (
	"context"

	"vision-qc/internal/domain/entity"
)

// InspectionRepository хранилище инспекций
type InspectionRepository interface {
	// Create сохраняет новую инспекцию и присваивает ей ID
	Create(ctx context.Context, inspection *entity.Inspection) error

	// Get возвращает инспекцию по ID
	Get(ctx context.Context, id uint) (*entity.Inspection, error)

	// SaveReview записывает правку и переводит инспекцию в статус reviewed
	SaveReview(ctx context.Context, id uint, correction entity.Correction) error

	// List возвращает инспекции от новых к старым; пустой status означает все
	List(ctx context.Context, status entity.InspectionStatus) ([]entity.Inspection, error)

	// Recent возвращает не более limit последних инспекций, от новых к старым
	Recent(ctx context.Context, limit int) ([]entity.Inspection, error)

	// Reviewed возвращает проверенные инспекции в порядке ID
	Reviewed(ctx context.Context) ([]entity.Inspection, error)

	// Stats считает инспекции по статусам
	Stats(ctx context.Context) (entity.Stats, error)
}

// ConfigRepository хранилище системных настроек
type ConfigRepository interface {
	Get(ctx context.Context, key string) (*entity.ConfigEntry, error)
	Put(ctx context.Context, entry entity.ConfigEntry) error
}

// AuditLog журнал аудита, допускает только добавление
type AuditLog interface {
	// Append добавляет запись и присваивает ей ID
	Append(ctx context.Context, entry *entity.AuditEntry) error

	// List возвращает не более limit записей, от новых к старым; при limit <= 0 все
	List(ctx context.Context, limit int) ([]entity.AuditEntry, error)

	// Last возвращает последнюю запись указанного типа или nil
	Last(ctx context.Context, action entity.AuditAction) (*entity.AuditEntry, error)
}

// Store объединяет три коллекции и позволяет выполнить операцию атомарно
type Store interface {
	Inspections() InspectionRepository
	Configs() ConfigRepository
	Audit() AuditLog

	// Atomic выполняет fn в одной транзакции; ошибка fn откатывает все записи
	Atomic(ctx context.Context, fn func(tx Store) error) error
}
