package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultJWTSecret is the development signing key. It must be overridden in production.
const DefaultJWTSecret = "change-me-in-production"

// Config holds application level configuration loaded from environment variables.
type Config struct {
	Env      string
	Port     string
	LogLevel string

	DBURL       string
	AutoMigrate bool

	JWTSecret  string
	JWTTTL     time.Duration
	CookieName string

	PasswordHasher  string
	BcryptCost      int
	HashConcurrency int

	RedisAddr string
	RedisDB   int
	RedisPass string

	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration
	ShieldEnabled     bool

	// TrustedProxies are CIDRs (or bare IPs) of reverse proxies whose
	// X-Forwarded-For is believed. Empty means the socket peer is the client.
	TrustedProxies []string

	RabbitMQURL string
}

// Load builds Config from environment with sensible defaults. A .env file in the
// working directory is read first when present; real environment variables win.
func Load() *Config {
	_ = godotenv.Load()

	env := getEnv("APP_ENV", getEnv("NODE_ENV", "development"))

	return &Config{
		Env:      strings.ToLower(env),
		Port:     getEnv("PORT", "3000"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DBURL:       getEnv("DB_URL", "root:password@tcp(localhost:3306)/auth?charset=utf8mb4&parseTime=True&loc=UTC"),
		AutoMigrate: getEnvBool("AUTO_MIGRATE", true),

		JWTSecret:  getEnv("JWT_SECRET", DefaultJWTSecret),
		JWTTTL:     getEnvDuration("JWT_TTL", 24*time.Hour),
		CookieName: getEnv("SESSION_COOKIE_NAME", "token"),

		PasswordHasher:  strings.ToLower(getEnv("PASSWORD_HASHER", "bcrypt")),
		BcryptCost:      getEnvInt("BCRYPT_COST", 10),
		HashConcurrency: getEnvInt("HASH_CONCURRENCY", runtime.NumCPU()),

		RedisAddr: getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:   getEnvInt("REDIS_DB", 0),
		RedisPass: os.Getenv("REDIS_PASSWORD"),

		RateLimitEnabled:  getEnvBool("RATE_LIMIT_ENABLED", true),
		RateLimitRequests: getEnvInt("RATE_LIMIT_REQUESTS", 5),
		RateLimitWindow:   getEnvDuration("RATE_LIMIT_WINDOW", 2*time.Second),
		ShieldEnabled:     getEnvBool("SHIELD_ENABLED", true),
		TrustedProxies:    getEnvList("TRUSTED_PROXIES"),

		RabbitMQURL: os.Getenv("RABBITMQ_URL"),
	}
}

// IsProduction reports whether the service runs with a production posture.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// Validate rejects configurations that are unsafe to run.
func (c *Config) Validate() error {
	if c.IsProduction() && (c.JWTSecret == "" || c.JWTSecret == DefaultJWTSecret) {
		return errors.New("JWT_SECRET must be set to a non-default value in production")
	}
	if c.JWTTTL <= 0 {
		return errors.New("JWT_TTL must be positive")
	}
	if c.RateLimitRequests < 1 || c.RateLimitWindow <= 0 {
		return errors.New("rate limit requests and window must be positive")
	}
	if _, err := c.TrustedProxyNets(); err != nil {
		return err
	}
	switch c.PasswordHasher {
	case "bcrypt", "argon2id":
	default:
		return errors.New("PASSWORD_HASHER must be bcrypt or argon2id")
	}
	return nil
}

// TrustedProxyNets parses TrustedProxies. A bare IP becomes a single-host range.
func (c *Config) TrustedProxyNets() ([]*net.IPNet, error) {
	nets := make([]*net.IPNet, 0, len(c.TrustedProxies))
	for _, p := range c.TrustedProxies {
		if !strings.Contains(p, "/") {
			ip := net.ParseIP(p)
			if ip == nil {
				return nil, fmt.Errorf("TRUSTED_PROXIES: invalid address %q", p)
			}
			bits := 128
			if ip.To4() != nil {
				ip, bits = ip.To4(), 32
			}
			nets = append(nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}
		_, ipNet, err := net.ParseCIDR(p)
		if err != nil {
			return nil, fmt.Errorf("TRUSTED_PROXIES: %w", err)
		}
		nets = append(nets, ipNet)
	}
	return nets, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
