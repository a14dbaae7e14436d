package app

import (
	"context"
	"sync"
	"time"

	"vision-qc/internal/domain/entity"
	"vision-qc/internal/domain/port"
)

// AuditTrail добавляет записи в журнал с неубывающими метками времени.
type AuditTrail struct {
	store port.Store
	clock port.Clock

	mu   sync.Mutex
	last time.Time
}

// NewAuditTrail создаёт журнал поверх store.
func NewAuditTrail(store port.Store, clock port.Clock) *AuditTrail {
	return &AuditTrail{store: store, clock: clock}
}

// Record добавляет запись вне транзакции.
func (a *AuditTrail) Record(ctx context.Context, action entity.AuditAction, inspectionID *uint, details string) (*entity.AuditEntry, error) {
	return a.RecordTo(ctx, a.store.Audit(), action, inspectionID, details)
}

// RecordTo добавляет запись в переданный журнал, например внутри Store.Atomic.
func (a *AuditTrail) RecordTo(ctx context.Context, log port.AuditLog, action entity.AuditAction, inspectionID *uint, details string) (*entity.AuditEntry, error) {
	entry := &entity.AuditEntry{
		InspectionID: inspectionID,
		Action:       action,
		Details:      details,
		Timestamp:    a.stamp(),
	}
	if err := log.Append(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// List возвращает последние записи, от новых к старым.
func (a *AuditTrail) List(ctx context.Context, limit int) ([]entity.AuditEntry, error) {
	return a.store.Audit().List(ctx, limit)
}

// Last возвращает последнюю запись типа action или nil.
func (a *AuditTrail) Last(ctx context.Context, action entity.AuditAction) (*entity.AuditEntry, error) {
	return a.store.Audit().Last(ctx, action)
}

func (a *AuditTrail) stamp() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.clock.Now()
	if now.Before(a.last) {
		now = a.last
	}
	a.last = now
	return now
}
