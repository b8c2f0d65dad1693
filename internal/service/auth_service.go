package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/labstack/gommon/log"

	"authapi/internal/events"
	apperrors "authapi/internal/errors"
	"authapi/internal/model"
	"authapi/internal/password"
	"authapi/internal/repository"
	"authapi/internal/validation"
)

// Internal failure reasons. They are logged and audited, never returned to clients.
const (
	ReasonUserNotFound    = "user not found"
	ReasonInvalidPassword = "invalid password"
	ReasonUserExists      = "user already exists"
)

// CreateUserInput carries sign-up fields. Email is normalized by the service.
type CreateUserInput struct {
	Name     string
	Email    string
	Password string
	Role     string
}

// AuthService handles authentication operations.
type AuthService interface {
	CreateUser(ctx context.Context, in CreateUserInput) (*model.Identity, error)
	AuthenticateUser(ctx context.Context, email, password string) (*model.Identity, error)
	RecordLogout(ctx context.Context, email string)
}

type authService struct {
	users     repository.UserRepository
	hasher    password.Hasher
	audit     Auditor
	publisher events.Publisher
	logger    *log.Logger

	dummyMu   sync.Mutex
	dummyHash string
}

// NewAuthService creates a new authentication service. audit and publisher
// may be nil.
func NewAuthService(
	users repository.UserRepository,
	hasher password.Hasher,
	audit Auditor,
	publisher events.Publisher,
	logger *log.Logger,
) AuthService {
	if audit == nil {
		audit = nopAuditor{}
	}
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &authService{
		users:     users,
		hasher:    hasher,
		audit:     audit,
		publisher: publisher,
		logger:    logger,
	}
}

// CreateUser registers a new user. The existence check runs before hashing;
// the unique index on email settles concurrent sign-ups.
func (s *authService) CreateUser(ctx context.Context, in CreateUserInput) (*model.Identity, error) {
	const op = "service.CreateUser"

	email := validation.NormalizeEmail(in.Email)
	role := in.Role
	if role == "" {
		role = model.RoleUser
	}
	if !model.ValidRole(role) {
		return nil, apperrors.Validation(op, "unknown role")
	}

	existing, err := s.users.FindByEmail(ctx, email)
	switch {
	case err == nil && existing != nil:
		s.record(ctx, model.AuthEventSignup, model.AuthOutcomeFailure, email, ReasonUserExists)
		return nil, apperrors.Conflict(op, apperrors.MsgUserExists)
	case err != nil && !errors.Is(err, repository.ErrUserNotFound):
		s.record(ctx, model.AuthEventSignup, model.AuthOutcomeFailure, email, "store error")
		return nil, apperrors.Store(op, err)
	}

	hash, err := s.hasher.Hash(ctx, in.Password)
	if err != nil {
		s.record(ctx, model.AuthEventSignup, model.AuthOutcomeFailure, email, "hashing error")
		return nil, apperrors.Hashing(op, err)
	}

	user := &model.User{
		Name:         in.Name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			s.record(ctx, model.AuthEventSignup, model.AuthOutcomeFailure, email, ReasonUserExists)
			return nil, apperrors.Conflict(op, apperrors.MsgUserExists)
		}
		s.record(ctx, model.AuthEventSignup, model.AuthOutcomeFailure, email, "store error")
		return nil, apperrors.Store(op, err)
	}

	s.record(ctx, model.AuthEventSignup, model.AuthOutcomeSuccess, email, "")
	s.publishSignedUp(ctx, user)
	return user.Identity(), nil
}

// AuthenticateUser checks credentials. Unknown email and wrong password are
// distinct internally but both surface as KindAuthentication.
func (s *authService) AuthenticateUser(ctx context.Context, email, plain string) (*model.Identity, error) {
	const op = "service.AuthenticateUser"

	email = validation.NormalizeEmail(email)

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			s.equalizeTiming(ctx, plain)
			s.record(ctx, model.AuthEventLogin, model.AuthOutcomeFailure, email, ReasonUserNotFound)
			return nil, apperrors.Authentication(op, ReasonUserNotFound)
		}
		s.record(ctx, model.AuthEventLogin, model.AuthOutcomeFailure, email, "store error")
		return nil, apperrors.Store(op, err)
	}

	ok, err := s.hasher.Compare(ctx, plain, user.PasswordHash)
	if err != nil {
		s.record(ctx, model.AuthEventLogin, model.AuthOutcomeFailure, email, "hashing error")
		return nil, apperrors.Hashing(op, err)
	}
	if !ok {
		s.record(ctx, model.AuthEventLogin, model.AuthOutcomeFailure, email, ReasonInvalidPassword)
		return nil, apperrors.Authentication(op, ReasonInvalidPassword)
	}

	s.record(ctx, model.AuthEventLogin, model.AuthOutcomeSuccess, email, "")
	return user.Identity(), nil
}

// RecordLogout audits a logout. Logout itself is stateless.
func (s *authService) RecordLogout(ctx context.Context, email string) {
	s.record(ctx, model.AuthEventLogout, model.AuthOutcomeSuccess, email, "")
}

// equalizeTiming runs one comparison against a throwaway hash so that unknown
// emails cost about as much as wrong passwords.
func (s *authService) equalizeTiming(ctx context.Context, plain string) {
	ctx = context.WithoutCancel(ctx)
	if dummy := s.dummy(ctx); dummy != "" {
		_, _ = s.hasher.Compare(ctx, plain, dummy)
	}
}

// dummy returns the throwaway hash, building it on first use. A failed build
// is retried by the next caller.
func (s *authService) dummy(ctx context.Context) string {
	s.dummyMu.Lock()
	defer s.dummyMu.Unlock()
	if s.dummyHash == "" {
		if h, err := s.hasher.Hash(ctx, "timing-equalizer"); err == nil {
			s.dummyHash = h
		}
	}
	return s.dummyHash
}

func (s *authService) record(ctx context.Context, event model.AuthEventType, outcome model.AuthOutcome, email, reason string) {
	fields := log.JSON{"event": string(event), "outcome": string(outcome), "email": email}
	if reason != "" {
		fields["reason"] = reason
	}
	if outcome == model.AuthOutcomeSuccess {
		s.logger.Infoj(fields)
	} else {
		s.logger.Warnj(fields)
	}

	s.audit.Record(ctx, model.AuthEvent{
		Event:   event,
		Outcome: outcome,
		Email:   email,
		Reason:  reason,
		IP:      ClientIP(ctx),
	})
}

func (s *authService) publishSignedUp(ctx context.Context, user *model.User) {
	evt := events.UserSignedUp{
		UserID:     user.ID.String(),
		Name:       user.Name,
		Email:      user.Email,
		Role:       user.Role,
		OccurredAt: time.Now().UTC(),
	}
	if err := s.publisher.PublishUserSignedUp(ctx, evt); err != nil {
		s.logger.Warnj(log.JSON{"event": "publish_signed_up", "outcome": "failure", "user_id": evt.UserID, "error": err.Error()})
	}
}

type clientIPKey struct{}

// WithClientIP attaches the caller's IP for audit records.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey{}, ip)
}

// ClientIP returns the IP stored by WithClientIP.
func ClientIP(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey{}).(string)
	return ip
}
