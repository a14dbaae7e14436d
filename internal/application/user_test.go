package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"vision-qc/internal/domain/entity"
	"vision-qc/internal/infrastructure/storage"
)

func TestUserService_BeginCheckAndCancel(t *testing.T) {
	repo := storage.NewMemoryUserRepository()
	svc := NewUserService(repo)
	ctx := context.Background()

	user, err := svc.BeginCheck(ctx, 1, 10)
	require.NoError(t, err)
	require.Equal(t, entity.StateAwaitingPhoto, user.State)

	user, err = svc.Cancel(ctx, 1, 10)
	require.NoError(t, err)
	require.Equal(t, entity.StateMainMenu, user.State)
}

func TestUserService_BeginReview(t *testing.T) {
	repo := storage.NewMemoryUserRepository()
	svc := NewUserService(repo)
	ctx := context.Background()

	user, err := svc.BeginReview(ctx, 2, 20, 7)
	require.NoError(t, err)
	require.Equal(t, entity.StateAwaitingReview, user.State)

	stored, err := svc.Get(ctx, 2, 20)
	require.NoError(t, err)
	require.Equal(t, uint(7), stored.InspectionID)
}

func TestUserService_FinishReview(t *testing.T) {
	repo := storage.NewMemoryUserRepository()
	svc := NewUserService(repo)
	ctx := context.Background()

	_, err := svc.BeginReview(ctx, 1, 10, 7)
	require.NoError(t, err)
	_, err = svc.BeginReview(ctx, 2, 20, 7)
	require.NoError(t, err)

	released, err := svc.FinishReview(ctx, 7)
	require.NoError(t, err)
	require.Len(t, released, 2)

	user, err := svc.Get(ctx, 2, 20)
	require.NoError(t, err)
	require.Equal(t, entity.StateMainMenu, user.State)
}
