package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/labstack/gommon/log"

	apperrors "authapi/internal/errors"
)

// DefaultTokenTTL is the session token lifetime when none is configured.
const DefaultTokenTTL = 24 * time.Hour

// Reasons logged for rejected tokens. Callers only ever see KindToken.
const (
	ReasonTokenExpired = "token expired"
	ReasonTokenInvalid = "token invalid"
)

var errUnexpectedSigningMethod = errors.New("unexpected signing method")

// SessionClaims is the identity carried by a session token.
type SessionClaims struct {
	ID    uuid.UUID
	Email string
	Role  string
}

// Claims represents JWT claims.
type Claims struct {
	UserID string `json:"id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Session converts the JWT claims back to session claims.
func (c *Claims) Session() (SessionClaims, error) {
	id, err := uuid.Parse(c.UserID)
	if err != nil {
		return SessionClaims{}, err
	}
	return SessionClaims{ID: id, Email: c.Email, Role: c.Role}, nil
}

// JWTService signs and verifies HS256 session tokens.
type JWTService struct {
	secret []byte
	ttl    time.Duration
	logger *log.Logger
	now    func() time.Time
}

// NewJWTService creates a new JWT service with the given secret and TTL.
func NewJWTService(secret string, ttl time.Duration, logger *log.Logger) *JWTService {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &JWTService{
		secret: []byte(secret),
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
	}
}

// TTL returns the token lifetime.
func (s *JWTService) TTL() time.Duration {
	return s.ttl
}

// Sign issues a token for the given identity and returns it with its expiry.
func (s *JWTService) Sign(session SessionClaims) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.ttl)
	claims := &Claims{
		UserID: session.ID.String(),
		Email:  session.Email,
		Role:   session.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   session.ID.String(),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, apperrors.E(apperrors.KindInternal, "auth.Sign", "sign token", err)
	}
	return token, expiresAt, nil
}

// Verify validates signature and expiry. Expired and tampered tokens are logged
// differently but both return a KindToken error.
func (s *JWTService) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errUnexpectedSigningMethod
		}
		return s.secret, nil
	})

	if err == nil && token.Valid {
		if _, perr := uuid.Parse(claims.UserID); perr == nil {
			return claims, nil
		}
		err = errors.New("malformed subject")
	}

	reason := ReasonTokenInvalid
	if errors.Is(err, jwt.ErrTokenExpired) {
		reason = ReasonTokenExpired
	}
	if s.logger != nil {
		s.logger.Warnj(log.JSON{"event": "token_verify", "outcome": "failure", "reason": reason, "error": errString(err)})
	}
	return nil, apperrors.Token("auth.Verify", reason, err)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
