package domain

import (
	"context"
	"time"
)

// Session is a server-side login session. The token is an opaque random
// value handed to the browser; the username identifies who signed in.
//
// The token is deliberately serialized into cached viewer configs, even
// though cache keys and invalidation payloads only ever carry its hashed
// scope (see CacheScope). The cached payload lives in the same Redis that
// holds the sessions themselves, and the purge tool needs the raw token to
// cross-check a cached config against its session key.
type Session struct {
	Token     string    `json:"token"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

type SessionRepository interface {
	// Create mints a new session for the given username. The token is
	// generated by the implementation and the record expires after ttl.
	Create(ctx context.Context, username string, ttl time.Duration) (*Session, error)

	// GetByToken returns ErrSessionNotFound for unknown or expired tokens.
	GetByToken(ctx context.Context, token string) (*Session, error)

	Delete(ctx context.Context, token string) error
}
