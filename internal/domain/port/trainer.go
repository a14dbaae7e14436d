package port

import (
	"context"

	"vision-qc/internal/domain/entity"
)

// Trainer внешняя процедура дообучения модели
type Trainer interface {
	// Fit обучает модель на корпусе и возвращает путь к лучшим весам
	Fit(ctx context.Context, manifest entity.CorpusManifest, params entity.TrainParams) (string, error)
}
