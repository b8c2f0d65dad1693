package shield

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Result describes a limiter verdict for one key.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Limiter decides whether a key may issue another request.
type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
	Close() error
}

type slidingEntry struct {
	prevCount int
	currCount int
	windowAt  time.Time // end of the current window
}

// SlidingWindowLimiter is an in-process limiter weighting the previous window's
// count by how much of it still overlaps the sliding window.
type SlidingWindowLimiter struct {
	mu      sync.Mutex
	entries map[string]*slidingEntry
	rate    int
	window  time.Duration
	now     func() time.Time
	done    chan struct{}
	once    sync.Once
}

var _ Limiter = (*SlidingWindowLimiter)(nil)

// NewSlidingWindowLimiter starts a limiter allowing rate requests per window.
func NewSlidingWindowLimiter(rate int, window time.Duration) *SlidingWindowLimiter {
	sl := &SlidingWindowLimiter{
		entries: make(map[string]*slidingEntry),
		rate:    rate,
		window:  window,
		now:     time.Now,
		done:    make(chan struct{}),
	}
	go sl.cleanup()
	return sl
}

// Allow records one request for key if it fits in the window.
func (s *SlidingWindowLimiter) Allow(ctx context.Context, key string) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	e, ok := s.entries[key]
	if !ok {
		s.entries[key] = &slidingEntry{currCount: 1, windowAt: now.Add(s.window)}
		return Result{Allowed: 1 <= s.rate, Limit: s.rate, Remaining: s.rate - 1}, nil
	}

	// windows are contiguous: the next one starts where the last one ended
	if !now.Before(e.windowAt) {
		skipped := int64(now.Sub(e.windowAt) / s.window)
		if skipped == 0 {
			e.prevCount = e.currCount
		} else {
			e.prevCount = 0
		}
		e.currCount = 0
		e.windowAt = e.windowAt.Add(time.Duration(skipped+1) * s.window)
	}

	// share of the previous window still inside the sliding window
	remainingFrac := float64(e.windowAt.Sub(now)) / float64(s.window)
	weighted := int(math.Ceil(float64(e.prevCount)*remainingFrac)) + e.currCount

	if weighted+1 > s.rate {
		return Result{
			Allowed:    false,
			Limit:      s.rate,
			Remaining:  0,
			RetryAfter: s.retryAfter(e, now),
		}, nil
	}

	e.currCount++
	return Result{Allowed: true, Limit: s.rate, Remaining: s.rate - weighted - 1}, nil
}

// retryAfter is how long until the previous window has decayed enough to admit
// one more request, or until the current window ends when it alone is full.
func (s *SlidingWindowLimiter) retryAfter(e *slidingEntry, now time.Time) time.Duration {
	untilEnd := e.windowAt.Sub(now)
	budget := s.rate - 1 - e.currCount
	if budget < 0 || e.prevCount == 0 {
		return untilEnd
	}
	wait := untilEnd - time.Duration(float64(s.window)*float64(budget)/float64(e.prevCount))
	if wait < time.Millisecond {
		wait = time.Millisecond
	}
	return wait
}

// Close stops the cleanup goroutine. Safe to call more than once.
func (s *SlidingWindowLimiter) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

func (s *SlidingWindowLimiter) cleanup() {
	ticker := time.NewTicker(s.window)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.removeExpired()
		}
	}
}

// removeExpired drops keys whose last window no longer overlaps the sliding window.
func (s *SlidingWindowLimiter) removeExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()

	threshold := s.now().Add(-s.window)
	for key, e := range s.entries {
		if e.windowAt.Before(threshold) {
			delete(s.entries, key)
		}
	}
}

// slidingWindowScript trims the ZSET to the window, counts, and either records
// the request or returns the score of the oldest entry.
var slidingWindowScript = redis.NewScript(`
	local key = KEYS[1]
	local window_start = tonumber(ARGV[1])
	local now = tonumber(ARGV[2])
	local rate = tonumber(ARGV[3])
	local window_ms = tonumber(ARGV[4])
	local member = ARGV[5]

	redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)
	local count = redis.call('ZCARD', key)

	if count + 1 > rate then
		local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
		local oldest_score = now
		if oldest[2] then
			oldest_score = tonumber(oldest[2])
		end
		return {0, count, oldest_score}
	end

	redis.call('ZADD', key, now, member)
	redis.call('PEXPIRE', key, window_ms)
	return {1, count + 1, 0}
`)

// RedisLimiter is a sliding-window limiter shared across instances through a
// Redis sorted set per key.
type RedisLimiter struct {
	client    redis.Cmdable
	keyPrefix string
	rate      int
	window    time.Duration
	now       func() time.Time
}

var _ Limiter = (*RedisLimiter)(nil)

// NewRedisLimiter builds a limiter on client. An empty prefix uses "shield:rl:".
func NewRedisLimiter(client redis.Cmdable, keyPrefix string, rate int, window time.Duration) *RedisLimiter {
	if keyPrefix == "" {
		keyPrefix = "shield:rl:"
	}
	return &RedisLimiter{
		client:    client,
		keyPrefix: keyPrefix,
		rate:      rate,
		window:    window,
		now:       time.Now,
	}
}

// Allow records one request for key if it fits in the window.
func (r *RedisLimiter) Allow(ctx context.Context, key string) (Result, error) {
	now := r.now()
	nowMicro := now.UnixMicro()
	windowStart := now.Add(-r.window).UnixMicro()

	vals, err := slidingWindowScript.Run(ctx, r.client, []string{r.keyPrefix + key},
		windowStart,
		nowMicro,
		r.rate,
		r.window.Milliseconds(),
		uuid.NewString(),
	).Int64Slice()
	if err != nil {
		return Result{}, fmt.Errorf("redis sliding window script: %w", err)
	}
	if len(vals) != 3 {
		return Result{}, fmt.Errorf("redis sliding window script: unexpected result %v", vals)
	}

	if vals[0] == 1 {
		remaining := r.rate - int(vals[1])
		if remaining < 0 {
			remaining = 0
		}
		return Result{Allowed: true, Limit: r.rate, Remaining: remaining}, nil
	}

	retry := time.Duration(vals[2]-windowStart) * time.Microsecond
	if retry < 0 {
		retry = 0
	}
	return Result{Allowed: false, Limit: r.rate, RetryAfter: retry}, nil
}

// Close is a no-op; the client is owned by the caller.
func (r *RedisLimiter) Close() error {
	return nil
}
