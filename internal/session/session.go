// Package session owns the signed-in user's state: token, profile, doctor
// directory and the background refresh that keeps the directory current.
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/wolfman30/clinicbook/internal/clinicapi"
)

var (
	ErrNoSession      = errors.New("session: not signed in")
	ErrSessionExpired = errors.New("session: expired or invalid")
	ErrNotFound       = errors.New("session: not found")
)

// Session is one signed-in user.
type Session struct {
	ID        string            `json:"id"`
	Token     string            `json:"token"`
	Role      Role              `json:"role"`
	User      clinicapi.Profile `json:"user"`
	CreatedAt time.Time         `json:"created_at"`
	ExpiresAt time.Time         `json:"expires_at"`
}

// UserID is the API id of the signed-in user.
func (s *Session) UserID() int {
	if s == nil {
		return 0
	}
	return s.User.ID
}

// Expired reports whether the session is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	if s == nil {
		return true
	}
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// tokenExpiry reads the exp claim without verifying the signature; the API
// stays the authority on validity. A token without exp yields the zero time.
func tokenExpiry(token string) (time.Time, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, fmt.Errorf("session: parse token: %w", err)
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, fmt.Errorf("session: token exp: %w", err)
	}
	if exp == nil {
		return time.Time{}, nil
	}
	return exp.Time, nil
}
