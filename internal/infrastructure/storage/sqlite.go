package storage

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"vision-qc/internal/domain/port"
	"vision-qc/internal/logger"
)

// SQLiteStore хранит инспекции, настройки и журнал аудита в SQLite через gorm.
type SQLiteStore struct {
	db *gorm.DB
}

// OpenSQLite открывает базу по пути path (":memory:" для тестов) и применяет миграции.
func OpenSQLite(path string, log *zap.Logger) (*SQLiteStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.NewGormAdapter(log, 200*time.Millisecond),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	// SQLite сериализует запись; одно соединение ещё и держит ":memory:" в одной базе.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("sqlite pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	return NewSQLiteStore(db)
}

// NewSQLiteStore оборачивает готовое соединение gorm и применяет миграции.
func NewSQLiteStore(db *gorm.DB) (*SQLiteStore, error) {
	if err := db.AutoMigrate(&inspectionRecord{}, &configRecord{}, &auditRecord{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Inspections() port.InspectionRepository {
	return &inspectionRepository{db: s.db}
}

func (s *SQLiteStore) Configs() port.ConfigRepository {
	return &configRepository{db: s.db}
}

func (s *SQLiteStore) Audit() port.AuditLog {
	return &auditLog{db: s.db}
}

// Atomic выполняет fn в транзакции. Внутри fn нужно работать только через tx.
func (s *SQLiteStore) Atomic(ctx context.Context, fn func(tx port.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&SQLiteStore{db: tx})
	})
}

// Close закрывает соединение с базой
func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Проверка реализации интерфейса
var _ port.Store = (*SQLiteStore)(nil)
