package handler

import (
	"context"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"authapi/internal/auth"
	apperrors "authapi/internal/errors"
	"authapi/internal/logging"
	"authapi/internal/model"
	"authapi/internal/service"
	"authapi/internal/validation"
)

// MockAuthService is a mock implementation of service.AuthService.
type MockAuthService struct {
	mock.Mock
}

func (m *MockAuthService) CreateUser(ctx context.Context, in service.CreateUserInput) (*model.Identity, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Identity), args.Error(1)
}

func (m *MockAuthService) AuthenticateUser(ctx context.Context, email, password string) (*model.Identity, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Identity), args.Error(1)
}

func (m *MockAuthService) RecordLogout(ctx context.Context, email string) {
	m.Called(ctx, email)
}

// MockUserService is a mock implementation of service.UserService.
type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) GetIdentity(ctx context.Context, id uuid.UUID) (*model.Identity, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Identity), args.Error(1)
}

type validatorFunc func(i interface{}) error

func (f validatorFunc) Validate(i interface{}) error { return f(i) }

type testServer struct {
	e       *echo.Echo
	authSvc *MockAuthService
	userSvc *MockUserService
	jwt     *auth.JWTService
	cookies *auth.CookieManager
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	ts := &testServer{
		e:       echo.New(),
		authSvc: new(MockAuthService),
		userSvc: new(MockUserService),
		jwt:     auth.NewJWTService("test-secret", time.Hour, logging.Discard()),
		cookies: auth.NewCookieManager("token", false, time.Hour),
	}
	ts.e.Validator = validatorFunc(func(i interface{}) error {
		return validation.Check(i.(validation.Validatable))
	})

	h := NewAuthHandler(ts.authSvc, ts.userSvc, ts.jwt, ts.cookies, logging.Discard())
	session := func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if token, ok := ts.cookies.Get(c.Request()); ok {
				if claims, err := ts.jwt.Verify(token); err == nil {
					c.Set(ContextKeySession, claims)
				}
			}
			return next(c)
		}
	}

	ts.e.POST("/api/auth/sign-up", h.SignUp)
	ts.e.POST("/api/auth/login", h.Login)
	ts.e.POST("/api/auth/logout", h.Logout)
	ts.e.GET("/api/auth/me", h.Me, session)
	return ts
}

func (ts *testServer) do(method, target, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	ts.e.ServeHTTP(rec, req)
	return rec
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == "token" {
			return c
		}
	}
	t.Fatal("no session cookie set")
	return nil
}

func ann() *model.Identity {
	return &model.Identity{ID: uuid.MustParse("6f1c2a1e-8d0b-4a55-9a53-5f0f3b8f7a10"), Name: "Ann", Email: "ann@x.com", Role: model.RoleUser}
}

func TestAuthHandler_SignUp(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		ts := newTestServer(t)
		ts.authSvc.On("CreateUser", mock.Anything, service.CreateUserInput{
			Name: "Ann", Email: "ann@x.com", Password: "secret123", Role: model.RoleUser,
		}).Return(ann(), nil)

		rec := ts.do(http.MethodPost, "/api/auth/sign-up", `{"name":"Ann","email":"Ann@X.com","password":"secret123"}`)

		require.Equal(t, http.StatusCreated, rec.Code)
		assert.JSONEq(t, `{"message":"user created","user":{"id":"6f1c2a1e-8d0b-4a55-9a53-5f0f3b8f7a10","name":"Ann","email":"ann@x.com","role":"user"}}`, rec.Body.String())
		assert.NotContains(t, rec.Body.String(), "password")

		cookie := sessionCookie(t, rec)
		assert.True(t, cookie.HttpOnly)
		claims, err := ts.jwt.Verify(cookie.Value)
		require.NoError(t, err)
		assert.Equal(t, "ann@x.com", claims.Email)
		ts.authSvc.AssertExpectations(t)
	})

	t.Run("validation errors", func(t *testing.T) {
		ts := newTestServer(t)
		rec := ts.do(http.MethodPost, "/api/auth/sign-up", `{"name":"A","email":"nope","password":"123","role":"root"}`)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{
			"error":"validation failed",
			"code":"VALIDATION_FAILED",
			"details":[
				{"field":"name","message":"must be between 2 and 255 characters"},
				{"field":"email","message":"must be a valid email address"},
				{"field":"password","message":"must be at least 6 characters"},
				{"field":"role","message":"must be one of: user, admin"}
			]}`, rec.Body.String())
		ts.authSvc.AssertNotCalled(t, "CreateUser", mock.Anything, mock.Anything)
		assert.Empty(t, rec.Result().Cookies())
	})

	t.Run("malformed body", func(t *testing.T) {
		ts := newTestServer(t)
		rec := ts.do(http.MethodPost, "/api/auth/sign-up", `{"name":`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "VALIDATION_FAILED")
	})

	t.Run("conflict", func(t *testing.T) {
		ts := newTestServer(t)
		ts.authSvc.On("CreateUser", mock.Anything, mock.Anything).
			Return(nil, apperrors.Conflict("service.CreateUser", apperrors.MsgUserExists))

		rec := ts.do(http.MethodPost, "/api/auth/sign-up", `{"name":"Ann","email":"ann@x.com","password":"secret123"}`)
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.JSONEq(t, `{"error":"user already exists","code":"USER_ALREADY_EXISTS"}`, rec.Body.String())
		assert.Empty(t, rec.Result().Cookies())
	})

	t.Run("infrastructure failure is generic", func(t *testing.T) {
		ts := newTestServer(t)
		ts.authSvc.On("CreateUser", mock.Anything, mock.Anything).
			Return(nil, apperrors.Store("service.CreateUser", stderrors.New("dial tcp 10.0.0.5:3306: connection refused")))

		rec := ts.do(http.MethodPost, "/api/auth/sign-up", `{"name":"Ann","email":"ann@x.com","password":"secret123"}`)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.JSONEq(t, `{"error":"internal server error","code":"INTERNAL_ERROR"}`, rec.Body.String())
	})
}

func TestAuthHandler_Login(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		ts := newTestServer(t)
		ts.authSvc.On("AuthenticateUser", mock.Anything, "ann@x.com", "secret123").Return(ann(), nil)

		rec := ts.do(http.MethodPost, "/api/auth/login", `{"email":"ANN@x.com","password":"secret123"}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"login successful"`)
		assert.NotEmpty(t, sessionCookie(t, rec).Value)
	})

	t.Run("unknown email and wrong password are indistinguishable", func(t *testing.T) {
		ts := newTestServer(t)
		ts.authSvc.On("AuthenticateUser", mock.Anything, "ann@x.com", "secret124").
			Return(nil, apperrors.Authentication("service.AuthenticateUser", service.ReasonInvalidPassword))
		ts.authSvc.On("AuthenticateUser", mock.Anything, "nobody@x.com", "secret124").
			Return(nil, apperrors.Authentication("service.AuthenticateUser", service.ReasonUserNotFound))

		wrong := ts.do(http.MethodPost, "/api/auth/login", `{"email":"ann@x.com","password":"secret124"}`)
		missing := ts.do(http.MethodPost, "/api/auth/login", `{"email":"nobody@x.com","password":"secret124"}`)

		assert.Equal(t, http.StatusUnauthorized, wrong.Code)
		assert.Equal(t, wrong.Code, missing.Code)
		assert.Equal(t, wrong.Body.String(), missing.Body.String())
		assert.JSONEq(t, `{"error":"invalid credentials","code":"INVALID_CREDENTIALS"}`, wrong.Body.String())
		assert.Empty(t, wrong.Result().Cookies())
	})

	t.Run("validation", func(t *testing.T) {
		ts := newTestServer(t)
		rec := ts.do(http.MethodPost, "/api/auth/login", `{"email":"","password":""}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		ts.authSvc.AssertNotCalled(t, "AuthenticateUser", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestAuthHandler_Logout(t *testing.T) {
	t.Run("without a session", func(t *testing.T) {
		ts := newTestServer(t)
		rec := ts.do(http.MethodPost, "/api/auth/logout", "")

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"message":"logged out"}`, rec.Body.String())
		cookie := sessionCookie(t, rec)
		assert.Empty(t, cookie.Value)
		assert.Less(t, cookie.MaxAge, 0)
		ts.authSvc.AssertNotCalled(t, "RecordLogout", mock.Anything, mock.Anything)
	})

	t.Run("with a session", func(t *testing.T) {
		ts := newTestServer(t)
		token, _, err := ts.jwt.Sign(auth.SessionClaims{ID: ann().ID, Email: "ann@x.com", Role: "user"})
		require.NoError(t, err)
		ts.authSvc.On("RecordLogout", mock.Anything, "ann@x.com").Return()

		rec := ts.do(http.MethodPost, "/api/auth/logout", "", &http.Cookie{Name: "token", Value: token})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, sessionCookie(t, rec).Value)
		ts.authSvc.AssertExpectations(t)
	})
}

func TestAuthHandler_Me(t *testing.T) {
	t.Run("session cookie", func(t *testing.T) {
		ts := newTestServer(t)
		token, _, err := ts.jwt.Sign(auth.SessionClaims{ID: ann().ID, Email: "ann@x.com", Role: "user"})
		require.NoError(t, err)
		ts.userSvc.On("GetIdentity", mock.Anything, ann().ID).Return(ann(), nil)

		rec := ts.do(http.MethodGet, "/api/auth/me", "", &http.Cookie{Name: "token", Value: token})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"email":"ann@x.com"`)
	})

	t.Run("no session", func(t *testing.T) {
		ts := newTestServer(t)
		rec := ts.do(http.MethodGet, "/api/auth/me", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.JSONEq(t, `{"error":"unauthorized","code":"UNAUTHORIZED"}`, rec.Body.String())
	})
}

func TestHealthHandler(t *testing.T) {
	started := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	h := NewHealthHandler(started)
	h.now = func() time.Time { return started.Add(90 * time.Second) }

	e := echo.New()
	e.GET("/health", h.Health)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","timestamp":"2024-05-01T12:01:30Z","uptime":90}`, rec.Body.String())
}
