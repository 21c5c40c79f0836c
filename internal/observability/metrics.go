// Package observability holds the Prometheus collectors and OpenTelemetry setup.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gorm.io/gorm"
)

var (
	// RedisErrorRate counts Redis errors by command.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "circle_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "circle_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// WebSocketConnectionsTotal is the gauge of active WebSocket connections.
	WebSocketConnectionsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "circle_websocket_connections_total",
		Help: "Total number of active WebSocket connections",
	})

	// WebSocketBackpressureDrops counts messages dropped due to backpressure by hub and reason.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "circle_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"hub", "reason"})

	// FriendRequestTransitions counts ledger state changes.
	FriendRequestTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "circle_friend_request_transitions_total",
		Help: "Friend request ledger transitions by kind",
	}, []string{"transition"})

	// NotificationsCreated counts stored notifications by type.
	NotificationsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "circle_notifications_created_total",
		Help: "Notifications persisted by type",
	}, []string{"type"})

	// NotificationFailures counts notification writes and pushes that were dropped.
	NotificationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "circle_notification_failures_total",
		Help: "Best-effort notification failures by stage",
	}, []string{"stage"})

	// StoriesSwept counts stories removed by the expiry sweep.
	StoriesSwept = promauto.NewCounter(prometheus.CounterOpts{
		Name: "circle_stories_swept_total",
		Help: "Expired stories deleted by the background sweep",
	})
)

const queryStartKey = "circle:query_start"

// RegisterGormMetrics installs callbacks that feed DatabaseQueryLatency for every
// create, query, update, delete and raw statement on db.
func RegisterGormMetrics(db *gorm.DB) error {
	before := func(tx *gorm.DB) {
		tx.InstanceSet(queryStartKey, time.Now())
	}
	after := func(operation string) func(*gorm.DB) {
		return func(tx *gorm.DB) {
			v, ok := tx.InstanceGet(queryStartKey)
			if !ok {
				return
			}
			start, ok := v.(time.Time)
			if !ok {
				return
			}
			table := "unknown"
			if tx.Statement != nil && tx.Statement.Table != "" {
				table = tx.Statement.Table
			}
			DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
		}
	}

	cb := db.Callback()
	steps := []struct {
		name   string
		before func(string) error
		after  func(string) error
	}{
		{"create",
			func(n string) error { return cb.Create().Before("gorm:create").Register(n, before) },
			func(n string) error { return cb.Create().After("gorm:create").Register(n, after("create")) }},
		{"query",
			func(n string) error { return cb.Query().Before("gorm:query").Register(n, before) },
			func(n string) error { return cb.Query().After("gorm:query").Register(n, after("query")) }},
		{"update",
			func(n string) error { return cb.Update().Before("gorm:update").Register(n, before) },
			func(n string) error { return cb.Update().After("gorm:update").Register(n, after("update")) }},
		{"delete",
			func(n string) error { return cb.Delete().Before("gorm:delete").Register(n, before) },
			func(n string) error { return cb.Delete().After("gorm:delete").Register(n, after("delete")) }},
		{"raw",
			func(n string) error { return cb.Raw().Before("gorm:raw").Register(n, before) },
			func(n string) error { return cb.Raw().After("gorm:raw").Register(n, after("raw")) }},
	}

	for _, s := range steps {
		if err := s.before("circle:metrics_before_" + s.name); err != nil {
			return err
		}
		if err := s.after("circle:metrics_after_" + s.name); err != nil {
			return err
		}
	}
	return nil
}
