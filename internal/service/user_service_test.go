package service

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"authapi/internal/cache"
	apperrors "authapi/internal/errors"
	"authapi/internal/model"
	"authapi/internal/repository"
)

func TestUserService_GetIdentity(t *testing.T) {
	id := uuid.New()

	tests := []struct {
		name     string
		setup    func(*MockUserRepository)
		wantKind apperrors.Kind
		wantErr  bool
	}{
		{
			name: "found",
			setup: func(m *MockUserRepository) {
				m.On("FindByID", mock.Anything, id).Return(&model.User{
					ID: id, Name: "Ann", Email: "ann@x.com", PasswordHash: "hash", Role: model.RoleAdmin,
				}, nil)
			},
		},
		{
			name: "subject no longer exists",
			setup: func(m *MockUserRepository) {
				m.On("FindByID", mock.Anything, id).Return(nil, repository.ErrUserNotFound)
			},
			wantErr:  true,
			wantKind: apperrors.KindToken,
		},
		{
			name: "store failure",
			setup: func(m *MockUserRepository) {
				m.On("FindByID", mock.Anything, id).Return(nil, stderrors.New("timeout"))
			},
			wantErr:  true,
			wantKind: apperrors.KindStore,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockUserRepository)
			tt.setup(repo)

			svc := NewUserService(repo, cache.New(nil, "authapi:"))
			identity, err := svc.GetIdentity(context.Background(), id)

			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, tt.wantKind, apperrors.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, &model.Identity{ID: id, Name: "Ann", Email: "ann@x.com", Role: model.RoleAdmin}, identity)
			repo.AssertExpectations(t)
		})
	}
}
