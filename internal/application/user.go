package app

import (
	"context"

	"vision-qc/internal/domain/entity"
	"vision-qc/internal/domain/port"
)

// UserService ведёт диалоговое состояние проверяющих в боте.
type UserService struct {
	repo port.UserRepository
}

func NewUserService(repo port.UserRepository) *UserService {
	return &UserService{repo: repo}
}

func (s *UserService) Get(ctx context.Context, userID, chatID int64) (*entity.User, error) {
	return s.repo.Get(ctx, userID, chatID)
}

func (s *UserService) SetState(ctx context.Context, userID, chatID int64, state entity.UserState) (*entity.User, error) {
	user, err := s.repo.Get(ctx, userID, chatID)
	if err != nil {
		return nil, err
	}

	user.SetState(state)
	if err := s.repo.Save(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

// BeginCheck ждёт от пользователя фото детали.
func (s *UserService) BeginCheck(ctx context.Context, userID, chatID int64) (*entity.User, error) {
	return s.SetState(ctx, userID, chatID, entity.StateAwaitingPhoto)
}

// BeginReview ждёт от пользователя вердикт по инспекции.
func (s *UserService) BeginReview(ctx context.Context, userID, chatID int64, inspectionID uint) (*entity.User, error) {
	user, err := s.repo.Get(ctx, userID, chatID)
	if err != nil {
		return nil, err
	}

	user.BeginReview(inspectionID)
	if err := s.repo.Save(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

func (s *UserService) Cancel(ctx context.Context, userID, chatID int64) (*entity.User, error) {
	return s.SetState(ctx, userID, chatID, entity.StateMainMenu)
}

// FinishReview снимает ожидание заметки у всех, кто проверял inspectionID.
func (s *UserService) FinishReview(ctx context.Context, inspectionID uint) ([]entity.User, error) {
	return s.repo.ReleaseReview(ctx, inspectionID)
}
