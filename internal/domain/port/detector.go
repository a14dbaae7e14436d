package port

import (
	"context"
	"errors"

	"vision-qc/internal/domain/entity"
)

// ErrImageRejected снимок непригоден для анализа (размыт, пересвечен и т.п.).
var ErrImageRejected = errors.New("image rejected by quality gate")

// DefectDetector интерфейс детектора дефектов
type DefectDetector interface {
	// Detect анализирует изображение и возвращает найденные объекты в порядке детектора
	Detect(ctx context.Context, imageData []byte) ([]entity.Detection, error)

	// HighlightDefects создаёт изображение с подсветкой дефектов
	HighlightDefects(imageData []byte, detections []entity.Detection) ([]byte, error)
}
