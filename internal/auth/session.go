// Package auth resolves the owner identity that scopes every cached and
// remote row.
package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid access token")
	ErrNoSecret     = errors.New("token signing secret is not configured")
)

// Provider is the identity side of the sync controller.
type Provider interface {
	// CurrentOwner returns the signed-in owner, or "" when nobody is.
	CurrentOwner(ctx context.Context) (string, error)
	// OnOwnershipChange registers fn for sign-in and sign-out. The returned
	// func removes the registration.
	OnOwnershipChange(fn func(owner string)) func()
}

// Claims is the access token payload; the subject is the owner id.
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Session keeps the current owner in memory. Owners come either from a
// verified HS256 access token or directly from a trusted caller.
type Session struct {
	secret []byte

	mu        sync.Mutex
	owner     string
	nextID    int
	listeners map[int]func(string)
}

var _ Provider = (*Session)(nil)

func NewSession(secret string) *Session {
	return &Session{
		secret:    []byte(secret),
		listeners: make(map[int]func(string)),
	}
}

func (s *Session) CurrentOwner(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.owner, nil
}

func (s *Session) OnOwnershipChange(fn func(owner string)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// SignInToken verifies token and makes its subject the current owner.
func (s *Session) SignInToken(token string) (string, error) {
	owner, err := s.ParseToken(token)
	if err != nil {
		return "", err
	}
	s.SetOwner(owner)
	return owner, nil
}

// ParseToken returns the owner carried by a valid token.
func (s *Session) ParseToken(token string) (string, error) {
	if len(s.secret) == 0 {
		return "", ErrNoSecret
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

// IssueToken signs an access token for owner.
func (s *Session) IssueToken(owner string, ttl time.Duration) (string, error) {
	if len(s.secret) == 0 {
		return "", ErrNoSecret
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   owner,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// SetOwner switches the session owner and notifies listeners when it changed.
func (s *Session) SetOwner(owner string) {
	s.mu.Lock()
	if s.owner == owner {
		s.mu.Unlock()
		return
	}
	s.owner = owner
	fns := make([]func(string), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(owner)
	}
}

func (s *Session) SignOut() {
	s.SetOwner("")
}
