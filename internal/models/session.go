package models

import (
	"fmt"
	"time"
)

// Session is a persisted OAuth session: an opaque session id mapped to the
// serialized token payload with a TTL.
type Session struct {
	id        string
	tokenInfo string // Serialized oauth2 token JSON
	expiresAt time.Time
	createdAt time.Time
}

// NewSession creates a session for the given id, token payload, and expiry.
func NewSession(id, tokenInfo string, expiresAt time.Time) *Session {
	return &Session{
		id:        id,
		tokenInfo: tokenInfo,
		expiresAt: expiresAt,
		createdAt: time.Now(),
	}
}

func (s *Session) ID() string           { return s.id }
func (s *Session) TokenInfo() string    { return s.tokenInfo }
func (s *Session) ExpiresAt() time.Time { return s.expiresAt }
func (s *Session) CreatedAt() time.Time { return s.createdAt }
func (s *Session) UpdatedAt() time.Time { return s.createdAt }

func (s *Session) SetCreatedAt(t time.Time) { s.createdAt = t }

// Expired reports whether the session's token has passed its TTL.
func (s *Session) Expired() bool {
	return time.Now().After(s.expiresAt)
}

func (s *Session) Validate() error {
	if s.id == "" {
		return fmt.Errorf("session id is required")
	}
	if s.tokenInfo == "" {
		return fmt.Errorf("session token info is required")
	}
	if s.expiresAt.IsZero() {
		return fmt.Errorf("session expiry is required")
	}
	return nil
}
