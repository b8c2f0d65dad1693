package auth

import (
	"net/http"
	"time"
)

// DefaultCookieName is the session cookie name when none is configured.
const DefaultCookieName = "token"

// CookieManager writes, clears and reads the session cookie.
type CookieManager struct {
	name   string
	secure bool
	maxAge time.Duration
}

// NewCookieManager builds a manager. secure should be true under a production
// posture; maxAge should match the token TTL.
func NewCookieManager(name string, secure bool, maxAge time.Duration) *CookieManager {
	if name == "" {
		name = DefaultCookieName
	}
	return &CookieManager{name: name, secure: secure, maxAge: maxAge}
}

// Name returns the cookie name.
func (m *CookieManager) Name() string {
	return m.name
}

// Set attaches token as an HttpOnly, SameSite=Strict cookie.
func (m *CookieManager) Set(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.name,
		Value:    token,
		Path:     "/",
		MaxAge:   int(m.maxAge / time.Second),
		Expires:  time.Now().Add(m.maxAge),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// Clear overwrites the cookie with an expired empty value. Safe without a session.
func (m *CookieManager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// Get returns the session token carried by r, if any.
func (m *CookieManager) Get(r *http.Request) (string, bool) {
	c, err := r.Cookie(m.name)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}
