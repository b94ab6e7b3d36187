package redis

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"

	"github.com/wadahkode/beranda/internal/domain"
	"github.com/wadahkode/beranda/internal/metrics"
)

const (
	sessionKeyPrefix = "session:"

	fieldUsername  = "username"
	fieldCreatedAt = "created_at"
	fieldExpiresAt = "expires_at"
)

// SessionRepo stores sessions as Redis hashes under "session:<token>" with a
// key TTL matching the session lifetime, so Redis reclaims expired sessions
// on its own.
type SessionRepo struct {
	rdb   goredis.Cmdable
	clock clockwork.Clock
}

var _ domain.SessionRepository = (*SessionRepo)(nil)

func NewSessionRepo(rdb goredis.Cmdable, clock clockwork.Clock) *SessionRepo {
	return &SessionRepo{rdb: rdb, clock: clock}
}

// Create mints a session for username with a fresh random token. Timestamps
// are truncated to millisecond precision, which is what the hash fields hold.
func (r *SessionRepo) Create(ctx context.Context, username string, ttl time.Duration) (*domain.Session, error) {
	token, err := newSessionToken()
	if err != nil {
		return nil, err
	}

	now := r.clock.Now().UTC().Truncate(time.Millisecond)
	session := &domain.Session{
		Token:     token,
		Username:  username,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}

	key := SessionKey(token)
	pipe := r.rdb.Pipeline()
	pipe.HSet(ctx, key,
		fieldUsername, session.Username,
		fieldCreatedAt, strconv.FormatInt(session.CreatedAt.UnixMilli(), 10),
		fieldExpiresAt, strconv.FormatInt(session.ExpiresAt.UnixMilli(), 10),
	)
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}

	metrics.SessionsCreatedTotal.Inc()
	return session, nil
}

// GetByToken returns ErrSessionNotFound for unknown tokens and for sessions
// whose stored expiry has passed even though the Redis key TTL has not fired
// yet.
func (r *SessionRepo) GetByToken(ctx context.Context, token string) (*domain.Session, error) {
	vals, err := r.rdb.HGetAll(ctx, SessionKey(token)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if len(vals) == 0 {
		return nil, domain.ErrSessionNotFound
	}

	session, err := sessionFromHash(token, vals)
	if err != nil {
		return nil, err
	}

	if !session.ExpiresAt.After(r.clock.Now()) {
		_ = r.rdb.Del(ctx, SessionKey(token)).Err()
		return nil, domain.ErrSessionNotFound
	}

	return session, nil
}

// Delete revokes a session. Deleting an unknown token is not an error.
func (r *SessionRepo) Delete(ctx context.Context, token string) error {
	if err := r.rdb.Del(ctx, SessionKey(token)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	metrics.SessionsRevokedTotal.Inc()
	return nil
}

func sessionFromHash(token string, vals map[string]string) (*domain.Session, error) {
	createdMs, err := strconv.ParseInt(vals[fieldCreatedAt], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt session created_at: %w", err)
	}

	expiresMs, err := strconv.ParseInt(vals[fieldExpiresAt], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt session expires_at: %w", err)
	}

	return &domain.Session{
		Token:     token,
		Username:  vals[fieldUsername],
		CreatedAt: time.UnixMilli(createdMs).UTC(),
		ExpiresAt: time.UnixMilli(expiresMs).UTC(),
	}, nil
}

func newSessionToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// SessionKey returns the Redis key holding the session for token. Exported
// for operational tooling that needs to check session existence.
func SessionKey(token string) string {
	return sessionKeyPrefix + token
}
