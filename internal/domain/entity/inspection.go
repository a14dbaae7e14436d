package entity

import (
	"bytes"
	"encoding/json"
	"time"
)

// InspectionStatus статус инспекции в жизненном цикле проверки.
type InspectionStatus string

const (
	StatusAutomated     InspectionStatus = "automated"      // Принято автоматически
	StatusPendingReview InspectionStatus = "pending_review" // Ждёт проверки человеком
	StatusReviewed      InspectionStatus = "reviewed"       // Проверено человеком
)

// Valid сообщает, известен ли статус.
func (s InspectionStatus) Valid() bool {
	switch s {
	case StatusAutomated, StatusPendingReview, StatusReviewed:
		return true
	}
	return false
}

// Inspection хранит результат анализа одного изображения.
type Inspection struct {
	ID               uint
	SourceRef        string      // имя файла изображения в хранилище
	Predictions      []Detection // ответ детектора в исходном порядке
	MaxConfidence    float64
	ThresholdUsed    float64
	Status           InspectionStatus
	FinalPredictions *Correction // заполняется только после проверки
	CreatedAt        time.Time
}

// TrainingDetections возвращает разметку для обучения: исправленную, если она есть, иначе ответ детектора.
func (i *Inspection) TrainingDetections() []Detection {
	if i.FinalPredictions != nil && i.FinalPredictions.Detections != nil {
		return i.FinalPredictions.Detections
	}
	return i.Predictions
}

// Correction правка проверяющего. Detections == nil означает «рамки не менялись».
// Незнакомые поля сохраняются в Extra и возвращаются при сериализации.
type Correction struct {
	Detections []Detection                `json:"detections"`
	Notes      string                     `json:"notes,omitempty"`
	Verified   *bool                      `json:"verified,omitempty"`
	Extra      map[string]json.RawMessage `json:"-"`
}

var correctionFields = []string{"detections", "notes", "verified"}

// UnmarshalJSON принимает и объект, и голый массив детекций.
func (c *Correction) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var dets []Detection
		if err := json.Unmarshal(trimmed, &dets); err != nil {
			return err
		}
		*c = Correction{Detections: dets}
		return nil
	}

	type plain Correction
	var p plain
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return err
	}
	for _, k := range correctionFields {
		delete(raw, k)
	}
	if len(raw) > 0 {
		p.Extra = raw
	}
	*c = Correction(p)
	return nil
}

// MarshalJSON пишет известные поля поверх сохранённых незнакомых.
func (c Correction) MarshalJSON() ([]byte, error) {
	type plain Correction
	known, err := json.Marshal(plain(c))
	if err != nil || len(c.Extra) == 0 {
		return known, err
	}

	out := make(map[string]json.RawMessage, len(c.Extra)+len(correctionFields))
	for k, v := range c.Extra {
		out[k] = v
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(known, &fields); err != nil {
		return nil, err
	}
	for k, v := range fields {
		out[k] = v
	}
	return json.Marshal(out)
}

// TriageDecision итог сортировки: статус и максимальная уверенность.
type TriageDecision struct {
	Status        InspectionStatus
	MaxConfidence float64
}

// InspectionSummary краткий ответ на отправку изображения.
type InspectionSummary struct {
	ID            uint             `json:"id"`
	SourceRef     string           `json:"filename"`
	Status        InspectionStatus `json:"status"`
	MaxConfidence float64          `json:"confidence"`
	ThresholdUsed float64          `json:"threshold_used"`
}

// Stats количество инспекций по статусам.
type Stats struct {
	Total     int64 `json:"total"`
	Automated int64 `json:"automated"`
	Pending   int64 `json:"pending"`
	Reviewed  int64 `json:"reviewed"`
}

// Image изображение из хранилища вместе с его реальными размерами.
type Image struct {
	Ref    string
	Width  int
	Height int
	Data   []byte
}
