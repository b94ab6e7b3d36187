package redis

import (
	"context"
	"fmt"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"

	"github.com/wadahkode/beranda/internal/metrics"
)

const viewerInvalidationChannel = "viewer:invalidate"

// ViewerInvalidationSubscriber listens for cache invalidations published by
// other instances and drops the named scope from the local in-memory cache.
// Payloads are cache scopes (token digests), never raw session tokens.
type ViewerInvalidationSubscriber struct {
	rdb   *goredis.Client
	cache *ViewerCacheRepo
}

func NewViewerInvalidationSubscriber(rdb *goredis.Client, cache *ViewerCacheRepo) *ViewerInvalidationSubscriber {
	return &ViewerInvalidationSubscriber{rdb: rdb, cache: cache}
}

// Start blocks until ctx is cancelled, processing invalidation messages as
// they arrive. go-redis resubscribes internally on connection loss.
func (s *ViewerInvalidationSubscriber) Start(ctx context.Context) {
	pubsub := s.rdb.Subscribe(ctx, viewerInvalidationChannel)
	defer func() { _ = pubsub.Close() }()

	metrics.PubSubSubscriptionActive.Set(1)
	defer metrics.PubSubSubscriptionActive.Set(0)

	slog.Info("Viewer cache invalidation subscriber started", "channel", viewerInvalidationChannel)

	ch := pubsub.Channel()
	for {
		select {
		case msg := <-ch:
			if msg == nil {
				metrics.PubSubReconnectionsTotal.Inc()
				slog.Warn("Viewer cache invalidation channel closed")
				return
			}
			s.handleInvalidation(msg.Payload)
		case <-ctx.Done():
			slog.Info("Viewer cache invalidation subscriber stopped")
			return
		}
	}
}

// handleInvalidation drops the scope from the local in-memory layer only.
// It never publishes, so invalidations cannot loop between instances.
func (s *ViewerInvalidationSubscriber) handleInvalidation(payload string) {
	if payload == "" {
		slog.Warn("Empty viewer invalidation message")
		return
	}

	metrics.PubSubMessagesReceived.WithLabelValues(viewerInvalidationChannel).Inc()
	s.cache.invalidateScope(payload)
	slog.Debug("Viewer config invalidated via pub/sub", "scope", payload)
}

// PublishViewerInvalidation notifies all instances that the cached viewer
// config for scope is stale.
func PublishViewerInvalidation(ctx context.Context, rdb goredis.Cmdable, scope string) error {
	if err := rdb.Publish(ctx, viewerInvalidationChannel, scope).Err(); err != nil {
		return fmt.Errorf("failed to publish viewer invalidation: %w", err)
	}
	return nil
}
