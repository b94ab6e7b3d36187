package domain

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
)

// ViewerConfig is the per-request view of who is looking at the site.
// Session is nil for anonymous viewers. User is populated only when the
// session carries a username that resolves to a stored account; a session
// whose user has disappeared still yields a valid config with User nil.
type ViewerConfig struct {
	Session *Session `json:"session,omitempty"`
	User    *Profile `json:"user,omitempty"`
}

// SignedIn reports whether the config belongs to an authenticated viewer.
func (v *ViewerConfig) SignedIn() bool {
	return v.Session != nil
}

// Theme returns the viewer's display preference, falling back to light
// for anonymous viewers and sessions without a resolved user.
func (v *ViewerConfig) Theme() Theme {
	if v.User != nil {
		return v.User.Theme
	}
	return ThemeLight
}

// AnonymousScope is the cache scope shared by all requests without a session.
const AnonymousScope = "anon"

// CacheScope derives the cache key scope for a session token. Tokens are
// hashed so cache keys never contain raw credentials, and every session
// gets its own cache entry instead of sharing one global slot. The hashing
// applies to keys and invalidation payloads only; the cached value itself
// still embeds the token (see Session).
func CacheScope(sessionToken string) string {
	if sessionToken == "" {
		return AnonymousScope
	}
	sum := sha256.Sum256([]byte(sessionToken))
	return hex.EncodeToString(sum[:8])
}

// ViewerSource resolves the viewer config for a session token.
// Implementations should provide read-through caching (memory → Redis →
// authoritative session and user stores). The cache is an accelerator
// only: a config must be resolvable with every cache layer down.
type ViewerSource interface {
	GetViewerConfig(ctx context.Context, sessionToken string) (*ViewerConfig, error)
}

// ViewerCacheInvalidator drops the cached viewer config for a session token.
type ViewerCacheInvalidator interface {
	InvalidateCache(ctx context.Context, sessionToken string) error
}
