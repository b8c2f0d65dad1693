package router

import (
	"net"
	"net/http"

	"github.com/go-playground/validator/v10"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	echoSwagger "github.com/swaggo/echo-swagger"

	"authapi/internal/auth"
	apperrors "authapi/internal/errors"
	"authapi/internal/handler"
	"authapi/internal/shield"
	"authapi/internal/validation"
)

// Deps are the collaborators Register wires into routes.
type Deps struct {
	Logger        *log.Logger
	Shield        *shield.Shield
	JWT           *auth.JWTService
	Cookies       *auth.CookieManager
	AuthHandler   *handler.AuthHandler
	HealthHandler *handler.HealthHandler
	// TrustedProxies may set X-Forwarded-For. Nil means none do.
	TrustedProxies []*net.IPNet
}

// Register wires routes and middleware. The shield runs before every handler.
func Register(e *echo.Echo, d Deps) {
	e.IPExtractor = IPExtractor(d.TrustedProxies)

	e.Use(middleware.RequestID())
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(requestLoggerConfig(d.Logger)))
	if d.Shield != nil {
		e.Use(d.Shield.Middleware())
	}

	e.Validator = NewCustomValidator()

	e.GET("/health", d.HealthHandler.Health)
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	api := e.Group("/api")

	api.POST("/auth/sign-up", d.AuthHandler.SignUp)
	api.POST("/auth/login", d.AuthHandler.Login)
	api.POST("/auth/logout", d.AuthHandler.Logout)

	// Secured routes (require a valid session cookie)
	secured := api.Group("", SessionMiddleware(d.JWT, d.Cookies))
	secured.GET("/auth/me", d.AuthHandler.Me)
}

// SessionMiddleware verifies the session cookie and stores its claims under
// handler.ContextKeySession.
func SessionMiddleware(jwt *auth.JWTService, cookies *auth.CookieManager) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		ContextKey:  handler.ContextKeySession,
		TokenLookup: "cookie:" + cookies.Name(),
		ParseTokenFunc: func(c echo.Context, token string) (interface{}, error) {
			return jwt.Verify(token)
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return echo.NewHTTPError(http.StatusUnauthorized, apperrors.ErrorResponse{
				Error: apperrors.MsgUnauthorized,
				Code:  "UNAUTHORIZED",
			})
		},
	})
}

// IPExtractor returns the socket peer as the client IP unless trusted proxies
// are given; then X-Forwarded-For is walked back through those ranges only.
func IPExtractor(trusted []*net.IPNet) echo.IPExtractor {
	if len(trusted) == 0 {
		return echo.ExtractIPDirect()
	}
	opts := []echo.TrustOption{
		echo.TrustLoopback(false),
		echo.TrustLinkLocal(false),
		echo.TrustPrivateNet(false),
	}
	for _, n := range trusted {
		opts = append(opts, echo.TrustIPRange(n))
	}
	return echo.ExtractIPFromXFFHeader(opts...)
}

func requestLoggerConfig(logger *log.Logger) middleware.RequestLoggerConfig {
	return middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogMethod:    true,
		LogURI:       true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := log.JSON{
				"event":      "request",
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency_ms": v.Latency.Milliseconds(),
				"remote_ip":  v.RemoteIP,
				"request_id": v.RequestID,
			}
			if v.Error != nil {
				fields["error"] = v.Error.Error()
			}
			logger.Infoj(fields)
			return nil
		},
	}
}

// CustomValidator wraps validator for Echo. Request shapes with their own
// checks are validated by them; anything else falls back to struct tags.
type CustomValidator struct {
	validator *validator.Validate
}

// NewCustomValidator builds the echo validator.
func NewCustomValidator() *CustomValidator {
	return &CustomValidator{validator: validator.New()}
}

// Validate implements echo.Validator interface.
func (cv *CustomValidator) Validate(i interface{}) error {
	if v, ok := i.(validation.Validatable); ok {
		return validation.Check(v)
	}
	return cv.validator.Struct(i)
}
