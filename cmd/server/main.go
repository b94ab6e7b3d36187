package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"
	"github.com/wadahkode/beranda/internal/adapter/httpserver"
	"github.com/wadahkode/beranda/internal/adapter/postgres"
	"github.com/wadahkode/beranda/internal/adapter/redis"
	"github.com/wadahkode/beranda/internal/app"
	"github.com/wadahkode/beranda/internal/metrics"
	"github.com/wadahkode/beranda/internal/platform/config"
	"github.com/wadahkode/beranda/internal/platform/logging"
	"github.com/wadahkode/beranda/internal/platform/version"
)

const (
	startupTimeout        = 10 * time.Second
	shutdownTimeout       = 10 * time.Second
	cacheEvictionInterval = 1 * time.Minute

	// Lifetime of in-process viewer config entries. Kept far below the Redis
	// layer's TTL so a locally cached config can never outlive the shared one.
	viewerMemoryCacheTTL = 10 * time.Second
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupDB(cfg *config.Config) *pgxpool.Pool {
	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := postgres.RunMigrationsWithLock(ctx, pool); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	return pool
}

func setupRedis(ctx context.Context, cfg *config.Config) *goredis.Client {
	client, err := redis.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client
}

func healthChecks(pool *pgxpool.Pool, redisClient *goredis.Client) []httpserver.HealthCheck {
	return []httpserver.HealthCheck{
		{Name: "postgres", Check: pool.Ping},
		{Name: "redis", Check: func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}},
	}
}

func runGracefulShutdown(srv *httpserver.Server, stopSubscriber context.CancelFunc) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		stopSubscriber()
		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port)

	build := version.Get()
	metrics.BuildInfo.WithLabelValues(build.Version, build.Commit, build.BuildTime, build.GoVersion).Set(1)

	pool := setupDB(cfg)
	defer pool.Close()

	redisClient := setupRedis(context.Background(), cfg)
	defer func() { _ = redisClient.Close() }()

	userRepo := postgres.NewUserRepo(pool)
	sessionRepo := redis.NewSessionRepo(redisClient, clock)

	// The viewer cache doubles as the invalidator: both sides of the cache
	// hierarchy live behind one repository.
	viewerCache := redis.NewViewerCacheRepo(redisClient, sessionRepo, userRepo, clock, viewerMemoryCacheTTL)
	stopEviction := viewerCache.StartEvictionTimer(cacheEvictionInterval)
	defer stopEviction()

	// Other instances announce invalidations over pub/sub; this subscriber
	// keeps the local in-memory layer coherent with them.
	subscriberCtx, stopSubscriber := context.WithCancel(context.Background())
	subscriber := redis.NewViewerInvalidationSubscriber(redisClient, viewerCache)
	go subscriber.Start(subscriberCtx)

	appSvc := app.NewService(userRepo, sessionRepo, viewerCache, viewerCache, cfg.BcryptCost, cfg.SessionMaxAge)

	srv, err := httpserver.NewServer(cfg, appSvc, healthChecks(pool, redisClient))
	if err != nil {
		slog.Error("Failed to create server", "error", err)
		os.Exit(1)
	}

	done := runGracefulShutdown(srv, stopSubscriber)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
