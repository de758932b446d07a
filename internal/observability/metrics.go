package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrors counts Redis failures by operation.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bloghub_redis_errors_total",
		Help: "Total number of Redis errors by operation",
	}, []string{"operation"})

	// CacheLookups counts cache-aside lookups by cache name and result (hit, miss, error).
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bloghub_cache_lookups_total",
		Help: "Cache lookups by cache and result",
	}, []string{"cache", "result"})

	// StoreRetries counts store operations that needed the retry policy, by outcome.
	StoreRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bloghub_store_retries_total",
		Help: "Store operations retried after transient failures, by outcome",
	}, []string{"outcome"})

	// StoreOperationLatency records retried-operation latency including backoff.
	StoreOperationLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bloghub_store_operation_seconds",
		Help:    "Store operation latency including retries",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	// NotificationDeliveries counts per-recipient notification rows written.
	NotificationDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bloghub_notification_deliveries_total",
		Help: "Per-user notification deliveries created, by source",
	}, []string{"source"})

	// NotificationPublishFailures counts realtime pushes that could not be published.
	NotificationPublishFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bloghub_notification_publish_failures_total",
		Help: "Realtime notification pushes that failed to publish",
	})

	// CascadeDeletes counts rows removed by cascading deletes, by entity.
	CascadeDeletes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bloghub_cascade_deleted_rows_total",
		Help: "Rows removed by cascading deletes, by entity",
	}, []string{"entity"})

	// EngagementToggles counts like/bookmark toggles by kind and resulting state.
	EngagementToggles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bloghub_engagement_toggles_total",
		Help: "Like and bookmark toggles by kind and resulting state",
	}, []string{"kind", "state"})

	// EmailSends counts outbound mail attempts by result.
	EmailSends = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bloghub_email_sends_total",
		Help: "Outbound mail attempts by result",
	}, []string{"result"})

	// WebSocketConnections is the number of open notification sockets.
	WebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bloghub_websocket_connections",
		Help: "Open notification WebSocket connections",
	})

	// WebSocketBackpressureDrops counts messages dropped because a client buffer was full.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bloghub_websocket_backpressure_drops_total",
		Help: "WebSocket messages dropped due to backpressure",
	}, []string{"reason"})
)

// TrackStoreOperation returns a func that records the elapsed time for operation when called.
func TrackStoreOperation(operation string) func() {
	start := time.Now()
	return func() {
		StoreOperationLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}
