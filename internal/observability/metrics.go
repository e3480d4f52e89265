package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrors counts Redis errors by command.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jobfeed_redis_errors_total",
		Help: "Total number of Redis errors by command",
	}, []string{"command"})

	// CacheLookups counts cache-aside reads by key family and outcome
	// (hit, miss, error).
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jobfeed_cache_lookups_total",
		Help: "Cache-aside lookups by key family and outcome",
	}, []string{"family", "outcome"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "jobfeed_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// EngagementActions counts successful engagement actions by type.
	EngagementActions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jobfeed_engagement_actions_total",
		Help: "Total engagement actions applied to posts",
	}, []string{"action"})

	// MutationConflicts counts optimistic version conflicts by operation.
	MutationConflicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jobfeed_mutation_conflicts_total",
		Help: "Total optimistic concurrency conflicts on post mutations",
	}, []string{"operation", "outcome"})

	// ModerationActions counts moderation actions by type.
	ModerationActions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jobfeed_moderation_actions_total",
		Help: "Total moderation actions by type",
	}, []string{"action"})

	// SchedulerPromotions counts scheduled posts promoted to published.
	SchedulerPromotions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jobfeed_scheduler_promotions_total",
		Help: "Total scheduled posts promoted to published",
	})

	// SchedulerFailures counts failed promotions.
	SchedulerFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jobfeed_scheduler_failures_total",
		Help: "Total scheduled post promotions that failed",
	})

	// SchedulerSweepDuration records how long each sweep took.
	SchedulerSweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "jobfeed_scheduler_sweep_seconds",
		Help:    "Scheduler sweep duration in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// FeedConnections is the gauge of live feed websocket connections.
	FeedConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "jobfeed_feed_ws_connections",
		Help: "Number of active live feed WebSocket connections",
	})

	// FeedBackpressureDrops counts feed messages dropped for slow clients.
	FeedBackpressureDrops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jobfeed_feed_ws_backpressure_drops_total",
		Help: "Total feed messages dropped due to a full client buffer",
	})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}
