package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "authapi/docs" // swagger docs

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"

	"authapi/internal/auth"
	"authapi/internal/cache"
	"authapi/internal/config"
	"authapi/internal/db"
	"authapi/internal/events"
	"authapi/internal/handler"
	"authapi/internal/logging"
	"authapi/internal/password"
	"authapi/internal/repository"
	"authapi/internal/router"
	"authapi/internal/service"
	"authapi/internal/shield"
)

const shutdownTimeout = 10 * time.Second

// @title Auth API
// @version 1.0
// @description Sign-up, login and logout with a JWT session cookie, guarded by a request shield.
// @host localhost:3000
// @BasePath /
// @schemes http
// @securityDefinitions.apikey CookieAuth
// @in cookie
// @name token
// @description Session JWT set by sign-up and login.
func main() {
	startedAt := time.Now()
	cfg := config.Load()
	logger := logging.New("authapi", cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		logger.Fatalj(log.JSON{"event": "config", "error": err.Error()})
	}

	gormDB, err := db.Open(cfg.DBURL, cfg.LogLevel == "debug")
	if err != nil {
		logger.Fatalj(log.JSON{"event": "database_init", "error": err.Error()})
	}
	if cfg.AutoMigrate {
		if err := db.Migrate(gormDB); err != nil {
			logger.Fatalj(log.JSON{"event": "database_migrate", "error": err.Error()})
		}
	}

	redisClient := cache.Connect(context.Background(), cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB, logger)
	cacheClient := cache.New(redisClient, "authapi:")

	// Initialize repositories
	userRepo := repository.NewUserRepository(gormDB)
	authEventRepo := repository.NewAuthEventRepository(gormDB)

	hasher, err := password.New(cfg.PasswordHasher, cfg.BcryptCost, cfg.HashConcurrency)
	if err != nil {
		logger.Fatalj(log.JSON{"event": "password_hasher", "error": err.Error()})
	}
	audit := service.NewAuditWriter(authEventRepo, logger)
	publisher := events.New(cfg.RabbitMQURL, logger)

	// Initialize services
	authService := service.NewAuthService(userRepo, hasher, audit, publisher, logger)
	userService := service.NewUserService(userRepo, cacheClient)

	jwtService := auth.NewJWTService(cfg.JWTSecret, cfg.JWTTTL, logger)
	cookies := auth.NewCookieManager(cfg.CookieName, cfg.IsProduction(), jwtService.TTL())

	shieldCfg := shield.Config{
		DetectBots:      cfg.IsProduction(),
		RateLimitExempt: []string{"/health"},
		Logger:          logger,
	}
	if cfg.ShieldEnabled {
		shieldCfg.Rules = shield.DefaultRules()
	}
	if cfg.RateLimitEnabled {
		if redisClient != nil {
			shieldCfg.Limiter = shield.NewRedisLimiter(redisClient, "", cfg.RateLimitRequests, cfg.RateLimitWindow)
		} else {
			shieldCfg.Limiter = shield.NewSlidingWindowLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow)
		}
	}
	requestShield := shield.New(shieldCfg)

	trustedProxies, err := cfg.TrustedProxyNets()
	if err != nil {
		logger.Fatalj(log.JSON{"event": "config", "error": err.Error()})
	}

	e := echo.New()
	e.HideBanner = true
	e.Logger = logger

	router.Register(e, router.Deps{
		Logger:         logger,
		Shield:         requestShield,
		JWT:            jwtService,
		Cookies:        cookies,
		AuthHandler:    handler.NewAuthHandler(authService, userService, jwtService, cookies, logger),
		HealthHandler:  handler.NewHealthHandler(startedAt),
		TrustedProxies: trustedProxies,
	})

	go func() {
		addr := ":" + cfg.Port
		logger.Infoj(log.JSON{"event": "server_start", "addr": addr, "env": cfg.Env, "swagger": "/swagger/index.html"})
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalj(log.JSON{"event": "server_start", "error": err.Error()})
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Errorj(log.JSON{"event": "server_shutdown", "error": err.Error()})
	}

	closeAll(logger,
		named{"audit", audit.Close},
		named{"shield", requestShield.Close},
		named{"publisher", publisher.Close},
		named{"database", func() error { return db.Close(gormDB) }},
	)
	if redisClient != nil {
		closeAll(logger, named{"redis", redisClient.Close})
	}
	logger.Infoj(log.JSON{"event": "server_stop"})
}

type named struct {
	name  string
	close func() error
}

func closeAll(logger *log.Logger, closers ...named) {
	for _, c := range closers {
		if err := c.close(); err != nil {
			logger.Warnj(log.JSON{"event": "shutdown", "component": c.name, "error": err.Error()})
		}
	}
}
