package entity

import "time"

// DriftParams параметры сравнения недавней и исторической уверенности.
type DriftParams struct {
	RecentWindow  int           // сколько последних инспекций читать
	RecentSplit   int           // сколько из них считать «недавними»
	MinSamples    int           // минимум инспекций для анализа
	DropThreshold float64       // допустимое падение средней уверенности
	Cooldown      time.Duration // не чаще одного алерта за этот период
}

// DefaultDriftParams возвращает параметры по умолчанию.
func DefaultDriftParams() DriftParams {
	return DriftParams{
		RecentWindow:  100,
		RecentSplit:   20,
		MinSamples:    40,
		DropThreshold: 0.15,
		Cooldown:      time.Hour,
	}
}

// DriftReport результат проверки дрейфа.
type DriftReport struct {
	DriftDetected bool    `json:"drift_detected"`
	DriftScore    float64 `json:"drift_score"`
	RecentAvg     float64 `json:"recent_avg"`
	BaselineAvg   float64 `json:"baseline_avg"`
	SampleCount   int     `json:"count"`
	Insufficient  bool    `json:"insufficient_data,omitempty"`
	AlertRecorded bool    `json:"alert_recorded,omitempty"`
	Message       string  `json:"message,omitempty"`
}
