package apiclient

import (
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Session holds the bearer credential of one authenticated user. A Client
// owns exactly one Session; separate users get separate clients.
type Session struct {
	mu    sync.RWMutex
	token string
}

func NewSession() *Session {
	return &Session{}
}

func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Session) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

func (s *Session) Clear() {
	s.SetToken("")
}

func (s *Session) Authenticated() bool {
	return s.Token() != ""
}

// Claims is what the front end can read from a JWT bearer token.
type Claims struct {
	Subject   string
	Role      string
	ExpiresAt time.Time
}

// Claims decodes the token payload without verifying the signature; only the
// backend can do that. ok is false when the token is not a JWT.
func (s *Session) Claims() (Claims, bool) {
	token := s.Token()
	if token == "" {
		return Claims{}, false
	}
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return Claims{}, false
	}
	mc, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, false
	}
	var c Claims
	c.Subject, _ = mc.GetSubject()
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		c.ExpiresAt = exp.Time
	}
	if role, ok := mc["role"].(string); ok {
		c.Role = role
	}
	return c, true
}

// Expired reports whether the token carries an expiry that has passed.
// Opaque tokens never expire from the front end's point of view.
func (s *Session) Expired(now time.Time) bool {
	c, ok := s.Claims()
	if !ok || c.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(c.ExpiresAt)
}
