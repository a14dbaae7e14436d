package port

import (
	"context"

	"vision-qc/internal/domain/entity"
)

// ImageStore хранилище исходных изображений инспекций
type ImageStore interface {
	// Save сохраняет изображение и возвращает ссылку на него
	Save(ctx context.Context, originalName string, data []byte) (string, error)

	// Resolve читает изображение и его размеры в пикселях
	Resolve(ctx context.Context, ref string) (*entity.Image, error)

	// Path возвращает путь к файлу изображения на диске
	Path(ref string) string
}
