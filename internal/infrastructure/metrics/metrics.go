package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Transfer metrics
	TransfersCompleted prometheus.Counter
	TransferDuration   prometheus.Histogram
	TransferErrors     *prometheus.CounterVec
	TransferReplays    prometheus.Counter

	// Trade metrics
	TradesExecuted *prometheus.CounterVec

	// User metrics
	UsersRegistered prometheus.Counter
	AuthFailures    *prometheus.CounterVec

	// API metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Database metrics
	DBQueries  *prometheus.CounterVec
	DBDuration *prometheus.HistogramVec

	// Rate cache metrics
	RateCacheHits   prometheus.Counter
	RateCacheMisses prometheus.Counter

	// Outbox metrics
	OutboxPublished prometheus.Counter
	OutboxFailures  prometheus.Counter
}

// New creates and registers all Prometheus metrics
func New() *Metrics {
	return &Metrics{
		TransfersCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "coinflip_transfers_completed_total",
			Help: "Total number of completed transfers",
		}),
		TransferDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "coinflip_transfer_duration_seconds",
			Help:    "Duration of transfer operations",
			Buckets: prometheus.DefBuckets,
		}),
		TransferErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coinflip_transfer_errors_total",
				Help: "Total number of transfer errors by kind",
			},
			[]string{"kind"},
		),
		TransferReplays: promauto.NewCounter(prometheus.CounterOpts{
			Name: "coinflip_transfer_replays_total",
			Help: "Total number of idempotent transfer replays",
		}),

		TradesExecuted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coinflip_trades_executed_total",
				Help: "Total number of executed trades by side",
			},
			[]string{"side"},
		),

		UsersRegistered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "coinflip_users_registered_total",
			Help: "Total number of registered users",
		}),
		AuthFailures: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coinflip_auth_failures_total",
				Help: "Total number of authentication failures by reason",
			},
			[]string{"reason"},
		),

		HTTPRequests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coinflip_http_requests_total",
				Help: "Total HTTP requests by method, path and status",
			},
			[]string{"method", "path", "status"},
		),
		HTTPDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "coinflip_http_request_duration_seconds",
				Help:    "HTTP request duration by method and path",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		DBQueries: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coinflip_db_queries_total",
				Help: "Total database queries by operation",
			},
			[]string{"operation"},
		),
		DBDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "coinflip_db_query_duration_seconds",
				Help:    "Database query duration by operation",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),

		RateCacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "coinflip_rate_cache_hits_total",
			Help: "Total exchange rate cache hits",
		}),
		RateCacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "coinflip_rate_cache_misses_total",
			Help: "Total exchange rate cache misses",
		}),

		OutboxPublished: promauto.NewCounter(prometheus.CounterOpts{
			Name: "coinflip_outbox_published_total",
			Help: "Total outbox events published",
		}),
		OutboxFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "coinflip_outbox_failures_total",
			Help: "Total outbox publish failures",
		}),
	}
}
