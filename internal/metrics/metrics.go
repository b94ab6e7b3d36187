package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Redis Operations Metrics
var (
	// RedisOpsTotal tracks total Redis operations by operation type and status
	RedisOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redis_operations_total",
			Help: "Total Redis operations by operation and status",
		},
		[]string{"operation", "status"},
	)

	// RedisOpDuration tracks Redis operation latency in seconds
	RedisOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "redis_operation_duration_seconds",
			Help:    "Redis operation duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	)

	// RedisConnectionErrors tracks Redis connection errors
	RedisConnectionErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "redis_connection_errors_total",
			Help: "Total Redis connection errors",
		},
	)

	// CircuitBreakerStateChanges tracks circuit breaker state transitions
	CircuitBreakerStateChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_changes_total",
			Help: "Circuit breaker state transitions by component and new state",
		},
		[]string{"component", "state"},
	)

	// CircuitBreakerState tracks current circuit breaker state (0=closed, 1=half-open, 2=open)
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Current circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"component"},
	)
)

// Viewer Config Cache Metrics
var (
	// ViewerCacheHits tracks lookups served from the in-process cache
	ViewerCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "viewer_cache_hits_total",
			Help: "Total viewer config lookups served from the in-process cache",
		},
	)

	// ViewerCacheMisses tracks in-process cache misses
	ViewerCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "viewer_cache_misses_total",
			Help: "Total in-process viewer config cache misses",
		},
	)

	// ViewerCacheRedisHits tracks lookups served from the Redis cache
	ViewerCacheRedisHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "viewer_cache_redis_hits_total",
			Help: "Total viewer config lookups served from the Redis cache",
		},
	)

	// ViewerCacheSourceHits tracks lookups that fell through to the session and user stores
	ViewerCacheSourceHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "viewer_cache_source_hits_total",
			Help: "Total viewer config lookups resolved from the authoritative stores",
		},
	)

	// ViewerCacheSize tracks current number of entries in the in-process cache
	ViewerCacheSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "viewer_cache_entries",
			Help: "Current number of entries in the in-process viewer config cache",
		},
	)

	// ViewerCacheEvictions tracks expired in-process entries evicted
	ViewerCacheEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "viewer_cache_evictions_total",
			Help: "Total expired viewer config cache entries evicted",
		},
	)

	// ViewerCacheWriteFailures tracks Redis cache write failures by reason
	ViewerCacheWriteFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "viewer_cache_write_failures_total",
			Help: "Total viewer config cache write failures by reason",
		},
		[]string{"reason"},
	)

	// ViewerCacheInvalidations tracks explicit cache invalidations
	ViewerCacheInvalidations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "viewer_cache_invalidations_total",
			Help: "Total explicit viewer config cache invalidations",
		},
	)
)

// Session and Authentication Metrics
var (
	// SessionsCreatedTotal tracks sessions minted on successful login
	SessionsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sessions_created_total",
			Help: "Total sessions created",
		},
	)

	// SessionsRevokedTotal tracks sessions revoked on logout
	SessionsRevokedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sessions_revoked_total",
			Help: "Total sessions revoked",
		},
	)

	// LoginAttemptsTotal tracks login attempts by result
	LoginAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "login_attempts_total",
			Help: "Total login attempts by result (success/invalid_credentials/error)",
		},
		[]string{"result"},
	)

	// RegistrationsTotal tracks account registrations by result
	RegistrationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "registrations_total",
			Help: "Total account registrations by result (success/username_taken/error)",
		},
		[]string{"result"},
	)

	// ThemeChangesTotal tracks theme preference updates by chosen theme
	ThemeChangesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "theme_changes_total",
			Help: "Total theme preference updates by chosen theme (light/dark)",
		},
		[]string{"theme"},
	)
)

// Pub/Sub Metrics
var (
	// PubSubMessagesReceived tracks cache invalidation messages received by channel
	PubSubMessagesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pubsub_messages_received_total",
			Help: "Total pub/sub messages received by channel",
		},
		[]string{"channel"},
	)

	// PubSubReconnectionsTotal tracks pub/sub reconnection attempts
	PubSubReconnectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pubsub_reconnections_total",
			Help: "Total pub/sub reconnection attempts after disconnect",
		},
	)

	// PubSubSubscriptionActive tracks whether the pub/sub subscription is active (1) or disconnected (0)
	PubSubSubscriptionActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pubsub_subscription_active",
			Help: "1 if pub/sub subscription is active, 0 if disconnected",
		},
	)
)

// Database Metrics
var (
	// DBQueryDuration tracks database query duration by query name
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"query"},
	)

	// DBErrorsTotal tracks database errors by query name
	DBErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_errors_total",
			Help: "Total database errors by query",
		},
		[]string{"query"},
	)
)

// Build Information Metrics
var (
	// BuildInfo is a gauge that always returns 1, with build metadata as labels
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "build_info",
			Help: "Build information with version, commit, build_time, and go_version labels (value is always 1)",
		},
		[]string{"version", "commit", "build_time", "go_version"},
	)
)

// HTTP Error Metrics
// Note: http_errors_total{type} is provided by the internal/errors package
