package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/labstack/gommon/log"

	"authapi/internal/config"
	"authapi/internal/db"
	apperrors "authapi/internal/errors"
	"authapi/internal/logging"
	"authapi/internal/model"
	"authapi/internal/password"
	"authapi/internal/repository"
	"authapi/internal/service"
	"authapi/internal/validation"
)

// seedUser is one entry of a seed file, same shape as the sign-up body.
type seedUser = validation.SignUpRequest

// Seeds users through the normal sign-up path. SEED_ADMIN_EMAIL,
// SEED_ADMIN_PASSWORD and SEED_ADMIN_NAME create an admin; SEED_USERS (a file
// path or http(s) URL of a JSON array) adds more users.
func main() {
	cfg := config.Load()
	logger := logging.New("seed", cfg.LogLevel)

	if err := run(cfg, logger); err != nil {
		logger.Errorj(log.JSON{"event": "seed", "outcome": "failure", "error": err.Error()})
		os.Exit(1)
	}
}

// run seeds and releases the database on every path.
func run(cfg *config.Config, logger *log.Logger) error {
	users, err := collectUsers()
	if err != nil {
		return err
	}
	if len(users) == 0 {
		logger.Warnj(log.JSON{"event": "seed", "message": "nothing to seed; set SEED_ADMIN_EMAIL or SEED_USERS"})
		return nil
	}

	hasher, err := password.New(cfg.PasswordHasher, cfg.BcryptCost, cfg.HashConcurrency)
	if err != nil {
		return err
	}

	gormDB, err := db.Open(cfg.DBURL, false)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(gormDB); err != nil {
			logger.Warnj(log.JSON{"event": "database_close", "error": err.Error()})
		}
	}()

	if err := db.Migrate(gormDB); err != nil {
		return err
	}
	authService := service.NewAuthService(repository.NewUserRepository(gormDB), hasher, nil, nil, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	created, existing, skipped, err := seedUsers(ctx, authService, users, logger)
	if err != nil {
		return err
	}
	logger.Infoj(log.JSON{"event": "seed", "created": created, "existing": existing, "skipped": skipped})
	return nil
}

// collectUsers reads the admin from SEED_ADMIN_* and extra users from SEED_USERS.
func collectUsers() ([]seedUser, error) {
	var users []seedUser
	if email := os.Getenv("SEED_ADMIN_EMAIL"); email != "" {
		users = append(users, seedUser{
			Name:     envOr("SEED_ADMIN_NAME", "Administrator"),
			Email:    email,
			Password: os.Getenv("SEED_ADMIN_PASSWORD"),
			Role:     model.RoleAdmin,
		})
	}
	if src := os.Getenv("SEED_USERS"); src != "" {
		loaded, err := loadUsers(src)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", src, err)
		}
		users = append(users, loaded...)
	}
	return users, nil
}

// seedUsers creates each valid user. Users that already exist are counted, not failed.
func seedUsers(ctx context.Context, svc service.AuthService, users []seedUser, logger *log.Logger) (created, existing, skipped int, err error) {
	for i := range users {
		u := users[i]
		if fields := u.Validate(); len(fields) > 0 {
			logger.Warnj(log.JSON{"event": "seed_skip", "email": u.Email, "details": fields})
			skipped++
			continue
		}

		_, err := svc.CreateUser(ctx, service.CreateUserInput{Name: u.Name, Email: u.Email, Password: u.Password, Role: u.Role})
		switch {
		case err == nil:
			created++
		case apperrors.Is(err, apperrors.KindConflict):
			existing++
		default:
			return created, existing, skipped, fmt.Errorf("create %s: %w", u.Email, err)
		}
	}
	return created, existing, skipped, nil
}

// loadUsers reads a JSON array of users from a file or an http(s) URL.
func loadUsers(src string) ([]seedUser, error) {
	var r io.ReadCloser
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		client := &http.Client{Timeout: 30 * time.Second}
		resp, err := client.Get(src)
		if err != nil {
			return nil, fmt.Errorf("fetch: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("fetch: status code %d", resp.StatusCode)
		}
		r = resp.Body
	} else {
		f, err := os.Open(src)
		if err != nil {
			return nil, err
		}
		r = f
	}
	defer r.Close()

	var users []seedUser
	if err := json.NewDecoder(r).Decode(&users); err != nil {
		return nil, fmt.Errorf("parse JSON: %w", err)
	}
	return users, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
