package storage

import (
	"context"
	"sort"
	"sync"

	"vision-qc/internal/domain/entity"
	"vision-qc/internal/domain/port"
)

// MemoryUserRepository in-memory хранилище сессий проверяющих.
// Наружу отдаются копии, чтобы бот не менял общее состояние без Save.
type MemoryUserRepository struct {
	mu    sync.RWMutex
	users map[int64]entity.User
}

// NewMemoryUserRepository создаёт новое in-memory хранилище
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		users: make(map[int64]entity.User),
	}
}

// Get возвращает пользователя по ID, создаёт нового если не найден
func (r *MemoryUserRepository) Get(ctx context.Context, userID, chatID int64) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, exists := r.users[userID]
	if !exists {
		user = *entity.NewUser(userID, chatID)
		r.users[userID] = user
	}

	return &user, nil
}

// Save сохраняет состояние пользователя
func (r *MemoryUserRepository) Save(ctx context.Context, user *entity.User) error {
	r.mu.Lock()
	r.users[user.ID] = *user
	r.mu.Unlock()

	return nil
}

// ReleaseReview сбрасывает сессии, ожидающие заметку к inspectionID.
func (r *MemoryUserRepository) ReleaseReview(ctx context.Context, inspectionID uint) ([]entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var released []entity.User
	for id, user := range r.users {
		if user.State != entity.StateAwaitingReview || user.InspectionID != inspectionID {
			continue
		}
		user.SetState(entity.StateMainMenu)
		r.users[id] = user
		released = append(released, user)
	}

	sort.Slice(released, func(i, j int) bool { return released[i].ID < released[j].ID })
	return released, nil
}

// Проверка реализации интерфейса
var _ port.UserRepository = (*MemoryUserRepository)(nil)
