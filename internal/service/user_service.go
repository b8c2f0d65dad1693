package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"authapi/internal/cache"
	apperrors "authapi/internal/errors"
	"authapi/internal/model"
	"authapi/internal/repository"
)

const identityCacheTTL = 5 * time.Minute

// UserService exposes read access to identities.
type UserService interface {
	GetIdentity(ctx context.Context, id uuid.UUID) (*model.Identity, error)
}

type userService struct {
	repo  repository.UserRepository
	cache *cache.Client
}

// NewUserService builds a UserService with repository and cache.
func NewUserService(repo repository.UserRepository, cache *cache.Client) UserService {
	return &userService{repo: repo, cache: cache}
}

func (s *userService) cacheKey(id uuid.UUID) string {
	return "identity:" + id.String()
}

// GetIdentity returns the identity for id, reading through the cache. Users are
// never updated, so cached entries only expire.
func (s *userService) GetIdentity(ctx context.Context, id uuid.UUID) (*model.Identity, error) {
	const op = "service.GetIdentity"

	var cached model.Identity
	if s.cache.GetJSON(ctx, s.cacheKey(id), &cached) && cached.ID == id {
		return &cached, nil
	}

	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, apperrors.Token(op, "subject not found", err)
		}
		return nil, apperrors.Store(op, err)
	}

	identity := user.Identity()
	_ = s.cache.SetJSON(ctx, s.cacheKey(id), identity, identityCacheTTL)
	return identity, nil
}
