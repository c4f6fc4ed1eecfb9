package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Oracle 调用延迟（毫秒）
	OracleCallLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "oracle_call_latency_ms",
			Help:    "Intent oracle call latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(50, 2, 10), // 50ms to ~25s
		},
		[]string{"contract", "status"},
	)

	// Oracle 结果被归一化为 fallback 的次数
	OracleFallbackCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oracle_fallback_total",
			Help: "Oracle results replaced by the fallback shape",
		},
		[]string{"contract", "cause"},
	)

	RouterDecisionCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "router_decision_total",
			Help: "Router decisions by route",
		},
		[]string{"route"}, // edit, done_prefix, delete_confirm, status, complete, capture
	)

	ItemsCreatedCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "items_created_total",
			Help: "Items created per bucket",
		},
		[]string{"bucket", "origin"}, // origin: capture, successor, move, undo
	)

	TransitionCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "item_transition_total",
			Help: "Item state machine transitions",
		},
		[]string{"action", "result"},
	)

	UndoCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "undo_total",
			Help: "Undo attempts by action type and result",
		},
		[]string{"action", "result"},
	)

	// MQ 消费延迟（毫秒）
	MQConsumeLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mq_consume_latency_ms",
			Help:    "MQ message consumption latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10),
		},
		[]string{"routing_key", "queue"},
	)

	// HTTP 请求延迟（秒）
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"method", "path", "status"},
	)

	SlowQueryCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_slow_query_total",
			Help: "Queries slower than the configured threshold",
		},
		[]string{"statement"},
	)

	SlowQueryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "db_slow_query_duration_seconds",
			Help:    "Duration of slow queries in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 8),
		},
	)
)

func RecordOracleCallLatency(contract, status string, duration time.Duration) {
	OracleCallLatency.WithLabelValues(contract, status).Observe(float64(duration.Milliseconds()))
}

func IncrementOracleFallback(contract, cause string) {
	OracleFallbackCount.WithLabelValues(contract, cause).Inc()
}

func IncrementRouterDecision(route string) {
	RouterDecisionCount.WithLabelValues(route).Inc()
}

func IncrementItemsCreated(bucket, origin string) {
	ItemsCreatedCount.WithLabelValues(bucket, origin).Inc()
}

func IncrementTransition(action, result string) {
	TransitionCount.WithLabelValues(action, result).Inc()
}

func IncrementUndo(action, result string) {
	UndoCount.WithLabelValues(action, result).Inc()
}

// RecordMQConsumeLatency 记录 MQ 消费延迟
func RecordMQConsumeLatency(routingKey, queue string, duration time.Duration) {
	MQConsumeLatency.WithLabelValues(routingKey, queue).Observe(float64(duration.Milliseconds()))
}

// RecordHTTPRequestDuration 记录 HTTP 请求延迟
func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// IncrementSlowQuery statement 只取 SQL 的第一个关键字，避免高基数
func IncrementSlowQuery(statement string, duration time.Duration) {
	SlowQueryCount.WithLabelValues(statement).Inc()
	SlowQueryDuration.Observe(duration.Seconds())
}
