package port

import (
	"context"

	"vision-qc/internal/domain/entity"
)

// UserRepository хранилище сессий проверяющих в боте
type UserRepository interface {
	// Get возвращает пользователя по ID, создаёт нового если не найден
	Get(ctx context.Context, userID, chatID int64) (*entity.User, error)

	// Save сохраняет состояние пользователя
	Save(ctx context.Context, user *entity.User) error

	// ReleaseReview возвращает в меню всех, кто ждал заметку к inspectionID, и отдаёт их.
	ReleaseReview(ctx context.Context, inspectionID uint) ([]entity.User, error)
}
