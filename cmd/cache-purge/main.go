// Command cache-purge drops cached viewer configs from Redis. Run it after a
// deploy that changes the cached shape, or with --stale-only to reclaim only
// the entries whose session is gone or expired.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/url"
	"os"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/wadahkode/beranda/internal/adapter/redis"
	"github.com/wadahkode/beranda/internal/domain"
)

const (
	scanPattern  = "viewer_config:*"
	anonymousKey = "viewer_config:" + domain.AnonymousScope
	scanCount    = 100
)

func main() {
	var (
		redisURL  = flag.String("redis", os.Getenv("REDIS_URL"), "Redis URL (or set REDIS_URL env)")
		staleOnly = flag.Bool("stale-only", false, "Only purge entries whose session is absent or expired")
		dryRun    = flag.Bool("dry-run", false, "Dry run mode (don't delete anything)")
		verbose   = flag.Bool("verbose", false, "Verbose logging")
	)
	flag.Parse()

	if *redisURL == "" {
		log.Fatal("Redis URL required (--redis or REDIS_URL env)")
	}

	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	opts, err := goredis.ParseURL(*redisURL)
	if err != nil {
		log.Fatalf("Failed to parse Redis URL: %v", err)
	}
	rdb := goredis.NewClient(opts)
	defer rdb.Close()

	ctx := context.Background()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	slog.Info("Connected to Redis", "url", redactURL(*redisURL))

	if err := purgeViewerConfigs(ctx, rdb, *staleOnly, *dryRun); err != nil {
		log.Fatalf("Purge failed: %v", err)
	}

	slog.Info("Purge complete")
}

func purgeViewerConfigs(ctx context.Context, rdb *goredis.Client, staleOnly, dryRun bool) error {
	start := time.Now()
	var cursor uint64
	var scanned, purged, skipped int

	slog.Info("Starting purge", "pattern", scanPattern, "stale_only", staleOnly, "dry_run", dryRun)

	for {
		keys, nextCursor, err := rdb.Scan(ctx, cursor, scanPattern, scanCount).Result()
		if err != nil {
			return fmt.Errorf("scan failed: %w", err)
		}

		for _, key := range keys {
			scanned++

			if staleOnly {
				stale, err := isStale(ctx, rdb, key)
				if err != nil {
					return err
				}
				if !stale {
					skipped++
					continue
				}
			}

			if !dryRun {
				if err := rdb.Del(ctx, key).Err(); err != nil {
					return fmt.Errorf("del failed for %s: %w", key, err)
				}
			}

			slog.Debug("Purged cached viewer config", "key", key)
			purged++
		}

		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}

	slog.Info("Purge summary",
		"scanned", scanned,
		"purged", purged,
		"skipped", skipped,
		"duration_ms", time.Since(start).Milliseconds())

	return nil
}

// isStale reports whether a cached viewer config outlived its session. The
// shared anonymous entry never goes stale. A config counts as stale when its
// payload carries no session, when the embedded expiry has passed, or when
// the session key itself is gone from Redis (revoked by logout).
func isStale(ctx context.Context, rdb *goredis.Client, key string) (bool, error) {
	if key == anonymousKey {
		slog.Debug("Keeping anonymous entry", "key", key)
		return false, nil
	}

	data, err := rdb.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		slog.Debug("Key vanished during scan", "key", key)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", key, err)
	}

	var config domain.ViewerConfig
	if err := json.Unmarshal(data, &config); err != nil {
		slog.Warn("Unreadable cached viewer config, leaving it to the read path", "key", key, "error", err)
		return false, nil
	}

	if config.Session == nil {
		return true, nil
	}
	if config.Session.ExpiresAt.Before(time.Now()) {
		return true, nil
	}

	exists, err := rdb.Exists(ctx, redis.SessionKey(config.Session.Token)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check session for %s: %w", key, err)
	}
	return exists == 0, nil
}

// redactURL hides the password in a Redis URL before it reaches a log line.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "invalid"
	}
	if _, has := u.User.Password(); has {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}
