package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/wadahkode/beranda/internal/domain"
	"github.com/wadahkode/beranda/internal/metrics"
)

// viewerCacheTTL is how long an assembled viewer config may be served from
// cache before the session and user stores are consulted again. The Redis
// layer owns this horizon; the in-memory layer runs on the much shorter
// TTL passed to NewViewerCacheRepo and never outlives the Redis entry.
const viewerCacheTTL = 5 * time.Minute

const viewerCacheKeyPrefix = "viewer_config:"

// ViewerCacheRepo assembles the viewer config (session plus user profile)
// behind a 3-layer read-through cache:
//
//	L1: in-memory map, per process
//	L2: Redis, shared across instances, expires after viewerCacheTTL
//	L3: session store and user repository (authoritative)
//
// Concurrent misses for the same scope collapse into a single backend
// lookup, so a burst of requests right after expiry produces one round trip
// instead of one per request.
type ViewerCacheRepo struct {
	rdb      goredis.Cmdable
	sessions domain.SessionRepository
	users    domain.UserRepository
	mem      *memoryCache
	group    singleflight.Group
	clock    clockwork.Clock
}

var (
	_ domain.ViewerSource           = (*ViewerCacheRepo)(nil)
	_ domain.ViewerCacheInvalidator = (*ViewerCacheRepo)(nil)
)

// NewViewerCacheRepo creates the cache. memTTL is the lifetime of in-memory
// entries and must be much shorter than viewerCacheTTL, otherwise a config
// re-read from Redis late in its life could be served past the point where
// the Redis entry itself has expired.
func NewViewerCacheRepo(rdb goredis.Cmdable, sessions domain.SessionRepository, users domain.UserRepository, clock clockwork.Clock, memTTL time.Duration) *ViewerCacheRepo {
	return &ViewerCacheRepo{
		rdb:      rdb,
		sessions: sessions,
		users:    users,
		mem:      newMemoryCache(memTTL, clock),
		clock:    clock,
	}
}

// GetViewerConfig returns the viewer config for the given session token,
// consulting the cache layers in order. Anonymous visitors share a single
// cache scope; signed-in viewers get a scope derived from their token.
func (r *ViewerCacheRepo) GetViewerConfig(ctx context.Context, sessionToken string) (*domain.ViewerConfig, error) {
	scope := domain.CacheScope(sessionToken)

	if config, hit := r.mem.get(scope); hit {
		metrics.ViewerCacheHits.Inc()
		return config, nil
	}
	metrics.ViewerCacheMisses.Inc()

	v, err, _ := r.group.Do(scope, func() (any, error) {
		if config, remaining, hit := r.getCached(ctx, scope); hit {
			metrics.ViewerCacheRedisHits.Inc()
			r.mem.setBounded(scope, config, remaining)
			return config, nil
		}

		config, err := r.resolve(ctx, sessionToken)
		if err != nil {
			return nil, err
		}
		metrics.ViewerCacheSourceHits.Inc()

		r.mem.set(scope, config)
		r.writeCache(ctx, scope, config)
		return config, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*domain.ViewerConfig), nil
}

// resolve assembles a viewer config from the authoritative stores. A missing
// or expired session yields an anonymous config; a session whose username no
// longer resolves to a user yields a session-only config. Neither case is an
// error, so both results are cacheable.
func (r *ViewerCacheRepo) resolve(ctx context.Context, sessionToken string) (*domain.ViewerConfig, error) {
	config := &domain.ViewerConfig{}
	if sessionToken == "" {
		return config, nil
	}

	session, err := r.sessions.GetByToken(ctx, sessionToken)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return config, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve session: %w", err)
	}
	config.Session = session

	if session.Username == "" {
		return config, nil
	}

	user, err := r.users.GetByUsername(ctx, session.Username)
	if errors.Is(err, domain.ErrUserNotFound) {
		return config, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve user %q: %w", session.Username, err)
	}
	config.User = user.Profile()

	return config, nil
}

// getCached reads the Redis cache layer. Failures degrade to a miss. On a
// hit it also reports the entry's remaining lifetime so the in-memory layer
// can bound its copy to it.
func (r *ViewerCacheRepo) getCached(ctx context.Context, scope string) (*domain.ViewerConfig, time.Duration, bool) {
	key := viewerCacheKey(scope)

	data, err := r.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, 0, false
	}
	if err != nil {
		slog.Warn("Failed to read viewer config from Redis cache", "scope", scope, "error", err)
		return nil, 0, false
	}

	var config domain.ViewerConfig
	if err := json.Unmarshal(data, &config); err != nil {
		slog.Warn("Failed to unmarshal cached viewer config", "scope", scope, "error", err)
		return nil, 0, false
	}

	remaining, err := r.rdb.TTL(ctx, key).Result()
	if err != nil {
		slog.Warn("Failed to read viewer config TTL from Redis cache", "scope", scope, "error", err)
		remaining = 0
	}

	return &config, remaining, true
}

// writeCache stores the config in Redis best-effort. A failed write costs a
// future cache miss, never the request.
func (r *ViewerCacheRepo) writeCache(ctx context.Context, scope string, config *domain.ViewerConfig) {
	data, err := json.Marshal(config)
	if err != nil {
		metrics.ViewerCacheWriteFailures.WithLabelValues("marshal").Inc()
		slog.Warn("Failed to marshal viewer config for cache", "scope", scope, "error", err)
		return
	}

	if err := r.rdb.Set(ctx, viewerCacheKey(scope), data, viewerCacheTTL).Err(); err != nil {
		metrics.ViewerCacheWriteFailures.WithLabelValues("redis").Inc()
		slog.Warn("Failed to write viewer config to Redis cache", "scope", scope, "error", err)
	}
}

// InvalidateCache drops the cached config for the given session token from
// both cache layers and tells other instances to do the same. The Redis
// delete must succeed; the publish is best-effort.
func (r *ViewerCacheRepo) InvalidateCache(ctx context.Context, sessionToken string) error {
	scope := domain.CacheScope(sessionToken)
	r.mem.invalidate(scope)

	if err := r.rdb.Del(ctx, viewerCacheKey(scope)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate viewer config cache: %w", err)
	}
	metrics.ViewerCacheInvalidations.Inc()

	if err := PublishViewerInvalidation(ctx, r.rdb, scope); err != nil {
		slog.Warn("Failed to publish viewer cache invalidation", "scope", scope, "error", err)
	}

	return nil
}

// invalidateScope drops a scope from the in-memory layer only. The pub/sub
// subscriber uses it so a received invalidation is not published again.
func (r *ViewerCacheRepo) invalidateScope(scope string) {
	r.mem.invalidate(scope)
}

// StartEvictionTimer starts a background loop that evicts expired in-memory
// entries every interval. The returned function stops the loop.
func (r *ViewerCacheRepo) StartEvictionTimer(interval time.Duration) func() {
	ticker := r.clock.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.Chan():
				evicted := r.mem.evictExpired()
				if evicted > 0 {
					metrics.ViewerCacheEvictions.Add(float64(evicted))
					slog.Debug("Evicted expired viewer configs from memory cache", "count", evicted)
				}
				metrics.ViewerCacheSize.Set(float64(r.mem.size()))
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()

	return func() { close(done) }
}

func viewerCacheKey(scope string) string {
	return viewerCacheKeyPrefix + scope
}

// memoryCache is the process-local cache layer. Entries carry their own
// expiry; reads of expired entries miss, and the eviction timer reclaims
// them.
type memoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryCacheEntry
	ttl     time.Duration
	clock   clockwork.Clock
}

type memoryCacheEntry struct {
	config    *domain.ViewerConfig
	expiresAt time.Time
}

func newMemoryCache(ttl time.Duration, clock clockwork.Clock) *memoryCache {
	return &memoryCache{
		entries: make(map[string]memoryCacheEntry),
		ttl:     ttl,
		clock:   clock,
	}
}

func (c *memoryCache) get(scope string) (*domain.ViewerConfig, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[scope]
	if !ok || !entry.expiresAt.After(c.clock.Now()) {
		return nil, false
	}
	return entry.config, true
}

func (c *memoryCache) set(scope string, config *domain.ViewerConfig) {
	c.setBounded(scope, config, 0)
}

// setBounded stores the entry, capping its lifetime at bound when bound is a
// positive duration shorter than the cache TTL. Callers re-populating from
// Redis pass the Redis entry's remaining TTL so the local copy never
// outlives the shared one.
func (c *memoryCache) setBounded(scope string, config *domain.ViewerConfig, bound time.Duration) {
	ttl := c.ttl
	if bound > 0 && bound < ttl {
		ttl = bound
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[scope] = memoryCacheEntry{
		config:    config,
		expiresAt: c.clock.Now().Add(ttl),
	}
}

func (c *memoryCache) invalidate(scope string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, scope)
}

func (c *memoryCache) evictExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	evicted := 0
	for scope, entry := range c.entries {
		if !entry.expiresAt.After(now) {
			delete(c.entries, scope)
			evicted++
		}
	}
	return evicted
}

func (c *memoryCache) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}
