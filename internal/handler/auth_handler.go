package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"

	"authapi/internal/auth"
	apperrors "authapi/internal/errors"
	"authapi/internal/model"
	"authapi/internal/service"
	"authapi/internal/validation"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	authService service.AuthService
	userService service.UserService
	jwt         *auth.JWTService
	cookies     *auth.CookieManager
	logger      *log.Logger
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(
	authService service.AuthService,
	userService service.UserService,
	jwt *auth.JWTService,
	cookies *auth.CookieManager,
	logger *log.Logger,
) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		userService: userService,
		jwt:         jwt,
		cookies:     cookies,
		logger:      logger,
	}
}

// AuthResponse is returned by sign-up and login.
type AuthResponse struct {
	Message string          `json:"message" example:"login successful"`
	User    *model.Identity `json:"user"`
}

// MessageResponse is a bare acknowledgement.
type MessageResponse struct {
	Message string `json:"message" example:"logged out"`
}

// MeResponse carries the session's identity.
type MeResponse struct {
	User *model.Identity `json:"user"`
}

// SignUp godoc
// @Summary Register a new user
// @Description Creates a user, sets the session cookie and returns the identity.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body validation.SignUpRequest true "Sign-up data"
// @Success 201 {object} AuthResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /api/auth/sign-up [post]
func (h *AuthHandler) SignUp(c echo.Context) error {
	var req validation.SignUpRequest
	if err := h.bindAndValidate(c, &req); err != nil {
		return err
	}

	identity, err := h.authService.CreateUser(h.requestContext(c), service.CreateUserInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		return h.fail(c, err)
	}

	if err := h.startSession(c, identity); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusCreated, AuthResponse{Message: "user created", User: identity})
}

// Login godoc
// @Summary Log in
// @Description Verifies credentials and sets the session cookie. Unknown email and wrong password return the same 401 body.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body validation.LoginRequest true "Login credentials"
// @Success 200 {object} AuthResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /api/auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req validation.LoginRequest
	if err := h.bindAndValidate(c, &req); err != nil {
		return err
	}

	identity, err := h.authService.AuthenticateUser(h.requestContext(c), req.Email, req.Password)
	if err != nil {
		return h.fail(c, err)
	}

	if err := h.startSession(c, identity); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, AuthResponse{Message: "login successful", User: identity})
}

// Logout godoc
// @Summary Log out
// @Description Clears the session cookie. Succeeds without an active session.
// @Tags auth
// @Produce json
// @Success 200 {object} MessageResponse
// @Router /api/auth/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	if token, ok := h.cookies.Get(c.Request()); ok {
		if claims, err := h.jwt.Verify(token); err == nil {
			h.authService.RecordLogout(h.requestContext(c), claims.Email)
		}
	}
	h.cookies.Clear(c.Response())
	return c.JSON(http.StatusOK, MessageResponse{Message: "logged out"})
}

// Me godoc
// @Summary Current identity
// @Description Returns the identity of the session cookie's subject.
// @Tags auth
// @Produce json
// @Security CookieAuth
// @Success 200 {object} MeResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /api/auth/me [get]
func (h *AuthHandler) Me(c echo.Context) error {
	claims, ok := c.Get(ContextKeySession).(*auth.Claims)
	if !ok {
		return h.fail(c, apperrors.Token("handler.Me", "missing claims", nil))
	}
	session, err := claims.Session()
	if err != nil {
		return h.fail(c, apperrors.Token("handler.Me", "malformed subject", err))
	}

	identity, err := h.userService.GetIdentity(c.Request().Context(), session.ID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, MeResponse{User: identity})
}

// ContextKeySession is where the session middleware stores verified *auth.Claims.
const ContextKeySession = "session"

func (h *AuthHandler) bindAndValidate(c echo.Context, req validation.Validatable) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, apperrors.ErrorResponse{
			Error:   apperrors.MsgValidationFailed,
			Code:    "VALIDATION_FAILED",
			Details: []apperrors.FieldError{{Field: "body", Message: "must be a valid JSON object"}},
		})
	}

	if err := c.Validate(req); err != nil {
		var verr *validation.Error
		if !errors.As(err, &verr) {
			return h.fail(c, err)
		}
		return echo.NewHTTPError(http.StatusBadRequest, apperrors.ErrorResponse{
			Error:   apperrors.MsgValidationFailed,
			Code:    "VALIDATION_FAILED",
			Details: verr.Fields,
		})
	}
	return nil
}

func (h *AuthHandler) startSession(c echo.Context, identity *model.Identity) error {
	token, _, err := h.jwt.Sign(auth.SessionClaims{ID: identity.ID, Email: identity.Email, Role: identity.Role})
	if err != nil {
		return err
	}
	h.cookies.Set(c.Response(), token)
	return nil
}

// fail maps err to its public response. Server-side failures are logged with
// full detail; the client only sees the generic text.
func (h *AuthHandler) fail(c echo.Context, err error) error {
	httpErr := apperrors.MapErrorToHTTP(err)
	if httpErr.StatusCode >= http.StatusInternalServerError {
		h.logger.Errorj(log.JSON{
			"event":      "request_failed",
			"path":       c.Path(),
			"kind":       apperrors.KindOf(err).String(),
			"error":      err.Error(),
			"request_id": c.Response().Header().Get(echo.HeaderXRequestID),
		})
	}
	return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
}

func (h *AuthHandler) requestContext(c echo.Context) context.Context {
	return service.WithClientIP(c.Request().Context(), c.RealIP())
}
