package entity

import "time"

// Ключи системных настроек.
const (
	ConfigConfidenceThreshold = "confidence_threshold"
)

// DefaultConfidenceThreshold порог по умолчанию.
const DefaultConfidenceThreshold = 0.6

// ConfigEntry одна системная настройка.
type ConfigEntry struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}
