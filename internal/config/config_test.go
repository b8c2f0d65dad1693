package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"APP_ENV", "NODE_ENV", "PORT", "JWT_SECRET", "JWT_TTL", "RATE_LIMIT_REQUESTS", "RATE_LIMIT_WINDOW", "PASSWORD_HASHER"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, "3000", cfg.Port)
	assert.Equal(t, DefaultJWTSecret, cfg.JWTSecret)
	assert.Equal(t, 24*time.Hour, cfg.JWTTTL)
	assert.Equal(t, 5, cfg.RateLimitRequests)
	assert.Equal(t, 2*time.Second, cfg.RateLimitWindow)
	assert.Equal(t, "bcrypt", cfg.PasswordHasher)
	assert.False(t, cfg.IsProduction())
	assert.NoError(t, cfg.Validate())
}

func TestLoad_NodeEnvFallback(t *testing.T) {
	t.Setenv("APP_ENV", "")
	t.Setenv("NODE_ENV", "Production")

	cfg := Load()
	assert.True(t, cfg.IsProduction())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "8081")
	t.Setenv("JWT_TTL", "90m")
	t.Setenv("RATE_LIMIT_ENABLED", "off")
	t.Setenv("BCRYPT_COST", "not-a-number")

	cfg := Load()

	assert.Equal(t, "8081", cfg.Port)
	assert.Equal(t, 90*time.Minute, cfg.JWTTTL)
	assert.False(t, cfg.RateLimitEnabled)
	assert.Equal(t, 10, cfg.BcryptCost)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults in development", func(c *Config) {}, false},
		{"default secret in production", func(c *Config) { c.Env = "production" }, true},
		{"custom secret in production", func(c *Config) { c.Env = "production"; c.JWTSecret = "s3cr3t" }, false},
		{"zero ttl", func(c *Config) { c.JWTTTL = 0 }, true},
		{"zero rate", func(c *Config) { c.RateLimitRequests = 0 }, true},
		{"unknown hasher", func(c *Config) { c.PasswordHasher = "md5" }, true},
		{"trusted proxy cidr", func(c *Config) { c.TrustedProxies = []string{"10.0.0.0/8"} }, false},
		{"malformed trusted proxy", func(c *Config) { c.TrustedProxies = []string{"10.0.0.0/99"} }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Env:               "development",
				JWTSecret:         DefaultJWTSecret,
				JWTTTL:            time.Hour,
				RateLimitRequests: 5,
				RateLimitWindow:   2 * time.Second,
				PasswordHasher:    "bcrypt",
			}
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestTrustedProxyNets(t *testing.T) {
	t.Setenv("TRUSTED_PROXIES", " 10.0.0.0/8, 192.0.2.10 ,, 2001:db8::1")

	cfg := Load()
	require.Equal(t, []string{"10.0.0.0/8", "192.0.2.10", "2001:db8::1"}, cfg.TrustedProxies)

	nets, err := cfg.TrustedProxyNets()
	require.NoError(t, err)
	require.Len(t, nets, 3)
	assert.Equal(t, "10.0.0.0/8", nets[0].String())
	assert.Equal(t, "192.0.2.10/32", nets[1].String())
	assert.Equal(t, "2001:db8::1/128", nets[2].String())

	cfg.TrustedProxies = []string{"proxy.local"}
	_, err = cfg.TrustedProxyNets()
	assert.Error(t, err)
}

func TestTrustedProxies_DefaultEmpty(t *testing.T) {
	t.Setenv("TRUSTED_PROXIES", "")
	nets, err := Load().TrustedProxyNets()
	require.NoError(t, err)
	assert.Empty(t, nets)
}
