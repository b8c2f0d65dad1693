// Package shield screens requests before routing: malicious signatures, bot
// user agents and per-client rate limits.
package shield

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"

	apperrors "authapi/internal/errors"
	"authapi/internal/logging"
)

// Denial codes returned in the response body.
const (
	CodeRateLimited = "RATE_LIMITED"
	CodeBlocked     = "REQUEST_BLOCKED"
	CodeBotDenied   = "BOT_DENIED"
)

// Config wires a Shield.
type Config struct {
	// Limiter is consulted per client IP. Nil disables rate limiting.
	Limiter Limiter
	// Rules are matched against path, query and user agent. Nil disables them.
	Rules []Rule
	// DetectBots enables bot filtering; it is meant for production only.
	DetectBots bool
	// RateLimitExempt lists paths that skip the limiter.
	RateLimitExempt []string
	Logger          *log.Logger
}

// Decision is the shield's verdict on one request.
type Decision struct {
	Allowed    bool
	Status     int
	Code       string
	Reason     string
	RetryAfter time.Duration
	Limit      int
	Remaining  int
}

// Shield evaluates requests against its rules, bot detector and limiter.
type Shield struct {
	limiter    Limiter
	rules      []Rule
	bots       BotDetector
	detectBots bool
	exempt     map[string]struct{}
	logger     *log.Logger
}

// New builds a Shield from cfg.
func New(cfg Config) *Shield {
	exempt := make(map[string]struct{}, len(cfg.RateLimitExempt))
	for _, p := range cfg.RateLimitExempt {
		exempt[p] = struct{}{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}
	return &Shield{
		limiter:    cfg.Limiter,
		rules:      cfg.Rules,
		detectBots: cfg.DetectBots,
		exempt:     exempt,
		logger:     cfg.Logger,
	}
}

// Evaluate decides on r for the client at ip. Rules run first, then bot
// detection, then the limiter. Limiter errors fail open.
func (s *Shield) Evaluate(r *http.Request, ip string) Decision {
	if name, ok := matchRules(s.rules, r); ok {
		return s.deny(r, ip, Decision{Status: http.StatusForbidden, Code: CodeBlocked, Reason: name})
	}

	if s.detectBots {
		if category, denied := s.bots.Classify(r.UserAgent()); denied {
			return s.deny(r, ip, Decision{Status: http.StatusForbidden, Code: CodeBotDenied, Reason: category})
		}
	}

	if s.limiter == nil {
		return Decision{Allowed: true}
	}
	if _, ok := s.exempt[r.URL.Path]; ok {
		return Decision{Allowed: true}
	}

	res, err := s.limiter.Allow(r.Context(), ip)
	if err != nil {
		s.logger.Errorj(log.JSON{"event": "shield_limiter", "outcome": "failure", "ip": ip, "error": err.Error()})
		return Decision{Allowed: true}
	}
	if !res.Allowed {
		return s.deny(r, ip, Decision{
			Status:     http.StatusTooManyRequests,
			Code:       CodeRateLimited,
			Reason:     "rate_limit",
			RetryAfter: res.RetryAfter,
			Limit:      res.Limit,
		})
	}
	return Decision{Allowed: true, Limit: res.Limit, Remaining: res.Remaining}
}

func (s *Shield) deny(r *http.Request, ip string, d Decision) Decision {
	s.logger.Warnj(log.JSON{
		"event":  "shield_deny",
		"reason": d.Reason,
		"status": d.Status,
		"ip":     ip,
		"method": r.Method,
		"path":   r.URL.Path,
	})
	return d
}

// Middleware runs Evaluate before any handler. The client IP comes from
// c.RealIP, so the echo instance's IPExtractor decides which headers count.
func (s *Shield) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			d := s.Evaluate(c.Request(), c.RealIP())
			h := c.Response().Header()
			if d.Limit > 0 {
				h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
				h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			}
			if d.Allowed {
				return next(c)
			}

			if d.Status == http.StatusTooManyRequests {
				secs := int(math.Ceil(d.RetryAfter.Seconds()))
				if secs < 1 {
					secs = 1
				}
				h.Set("Retry-After", strconv.Itoa(secs))
				return c.JSON(d.Status, apperrors.ErrorResponse{Error: "too many requests", Code: d.Code})
			}
			return c.JSON(d.Status, apperrors.ErrorResponse{Error: "forbidden", Code: d.Code})
		}
	}
}

// Close releases the limiter.
func (s *Shield) Close() error {
	if s.limiter == nil {
		return nil
	}
	return s.limiter.Close()
}
