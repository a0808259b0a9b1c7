package connectors

import (
	"context"
	"time"
)

// Session is an authenticated broker session. The access token is
// acquired by an external login collaborator and is only valid for the
// trading day; every client call checks expiry explicitly instead of
// relying on ambient global state.
type Session struct {
	APIKey      string
	AccessToken string
	UserID      string
	IssuedAt    time.Time
	Expiry      time.Time
}

// Valid reports whether the session token can still be used at t.
func (s *Session) Valid(t time.Time) bool {
	if s == nil || s.AccessToken == "" {
		return false
	}
	return t.Before(s.Expiry)
}

// TokenProvider acquires a fresh session for the day. The production
// implementation drives the broker's interactive login flow and lives
// outside this module.
type TokenProvider interface {
	Login(ctx context.Context) (*Session, error)
}
