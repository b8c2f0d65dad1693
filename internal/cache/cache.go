package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/labstack/gommon/log"
	"github.com/redis/go-redis/v9"
)

// Connect dials Redis and pings it. It returns nil when Redis is unreachable so
// callers fall back to their in-process behaviour.
func Connect(ctx context.Context, addr, password string, db int, logger *log.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warnj(log.JSON{"event": "redis_connect", "outcome": "failure", "addr": addr, "error": err.Error()})
		_ = client.Close()
		return nil
	}
	logger.Infoj(log.JSON{"event": "redis_connect", "outcome": "success", "addr": addr})
	return client
}

// Client wraps redis.Client but fails safe by swallowing connectivity errors.
type Client struct {
	client redis.Cmdable
	prefix string
}

// New wraps an existing connection. A nil client yields a cache that always misses.
func New(client *redis.Client, prefix string) *Client {
	if client == nil {
		return &Client{prefix: prefix}
	}
	return &Client{client: client, prefix: prefix}
}

func (c *Client) key(k string) string {
	return c.prefix + k
}

// Get returns value or nil if missing or redis unavailable.
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	if c == nil || c.client == nil {
		return nil, nil
	}
	res, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		// redis.Nil and connectivity errors both read as a miss
		return nil, nil
	}
	return res, nil
}

// Set stores value with TTL, ignoring redis errors.
func (c *Client) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if c == nil || c.client == nil {
		return nil
	}
	_ = c.client.Set(ctx, c.key(key), value, ttl).Err()
	return nil
}

// GetJSON decodes a cached value into dst. It reports false on a miss or a
// value that no longer decodes.
func (c *Client) GetJSON(ctx context.Context, key string, dst interface{}) bool {
	raw, _ := c.Get(ctx, key)
	if raw == nil {
		return false
	}
	return json.Unmarshal(raw, dst) == nil
}

// SetJSON encodes value and stores it with TTL.
func (c *Client) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.Set(ctx, key, raw, ttl)
}
