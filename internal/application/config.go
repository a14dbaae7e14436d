package app

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"

	"go.uber.org/zap"

	"vision-qc/internal/domain/entity"
	"vision-qc/internal/domain/port"
)

// ConfigService системные настройки с аудитом изменений.
type ConfigService struct {
	store            port.Store
	audit            *AuditTrail
	clock            port.Clock
	log              *zap.Logger
	defaultThreshold float64
}

// NewConfigService создаёт сервис настроек; defaultThreshold используется, если порог ещё не записан.
func NewConfigService(store port.Store, audit *AuditTrail, clock port.Clock, log *zap.Logger, defaultThreshold float64) *ConfigService {
	return &ConfigService{
		store:            store,
		audit:            audit,
		clock:            clock,
		log:              log.Named("config"),
		defaultThreshold: defaultThreshold,
	}
}

// Get возвращает значение настройки или ErrNotFound.
func (s *ConfigService) Get(ctx context.Context, key string) (string, error) {
	entry, err := s.store.Configs().Get(ctx, key)
	if err != nil {
		return "", err
	}
	return entry.Value, nil
}

// Set записывает значение и добавляет config_change со старым и новым значением в одной транзакции.
func (s *ConfigService) Set(ctx context.Context, key, value string) error {
	if key == "" {
		return errors.New("config key is required")
	}
	if key == entity.ConfigConfidenceThreshold {
		if _, err := ParseThreshold(value); err != nil {
			return err
		}
	}

	var old string
	err := s.store.Atomic(ctx, func(tx port.Store) error {
		prev, err := tx.Configs().Get(ctx, key)
		switch {
		case errors.Is(err, ErrNotFound):
			old = "None"
		case err != nil:
			return err
		default:
			old = prev.Value
		}

		if err := tx.Configs().Put(ctx, entity.ConfigEntry{Key: key, Value: value, UpdatedAt: s.clock.Now()}); err != nil {
			return err
		}

		details := fmt.Sprintf("Config '%s' changed from %s to %s", key, old, value)
		_, err = s.audit.RecordTo(ctx, tx.Audit(), entity.ActionConfigChange, nil, details)
		return err
	})
	if err != nil {
		return fmt.Errorf("set config %q: %w", key, err)
	}

	s.log.Info("config updated", zap.String("key", key), zap.String("old", old), zap.String("new", value))
	return nil
}

// Seed записывает значения по умолчанию для отсутствующих ключей. Аудит не ведётся.
func (s *ConfigService) Seed(ctx context.Context, defaults map[string]string) error {
	keys := make([]string, 0, len(defaults))
	for k := range defaults {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		_, err := s.store.Configs().Get(ctx, key)
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrNotFound) {
			return err
		}
		if err := s.store.Configs().Put(ctx, entity.ConfigEntry{Key: key, Value: defaults[key], UpdatedAt: s.clock.Now()}); err != nil {
			return err
		}
		s.log.Info("config seeded", zap.String("key", key), zap.String("value", defaults[key]))
	}
	return nil
}

// Threshold читает текущий порог уверенности. Без записи в базе возвращает значение по умолчанию.
func (s *ConfigService) Threshold(ctx context.Context) (float64, error) {
	value, err := s.Get(ctx, entity.ConfigConfidenceThreshold)
	if errors.Is(err, ErrNotFound) {
		return s.defaultThreshold, nil
	}
	if err != nil {
		return 0, err
	}

	threshold, err := ParseThreshold(value)
	if err != nil {
		s.log.Warn("stored threshold is invalid, using default", zap.String("value", value), zap.Float64("default", s.defaultThreshold))
		return s.defaultThreshold, nil
	}
	return threshold, nil
}

// ParseThreshold разбирает порог и проверяет диапазон [0,1].
func ParseThreshold(value string) (float64, error) {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidThreshold, value)
	}
	if err := ValidateThreshold(v); err != nil {
		return 0, err
	}
	return v, nil
}

// ValidateThreshold проверяет, что порог лежит в [0,1].
func ValidateThreshold(v float64) error {
	if math.IsNaN(v) || v < 0 || v > 1 {
		return fmt.Errorf("%w: %v", ErrInvalidThreshold, v)
	}
	return nil
}
