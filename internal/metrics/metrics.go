package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PlacementRequestsTotal tracks placement API calls by operation and outcome
	PlacementRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nodepulse_placement_requests_total",
			Help: "Total number of placement API requests",
		},
		[]string{"operation", "outcome"},
	)

	// PlacementRequestLatency tracks placement API call latency
	PlacementRequestLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nodepulse_placement_request_latency_seconds",
			Help:    "Placement API request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// PlacementCircuitOpen is 1 when the placement circuit is latched open
	PlacementCircuitOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "nodepulse_placement_circuit_open",
			Help: "Whether placement reporting is disabled for this process",
		},
	)

	// ProviderCacheSize tracks resolved resource providers held in memory
	ProviderCacheSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "nodepulse_provider_cache_size",
			Help: "Number of resource providers in the reconciliation cache",
		},
	)

	// ReportCyclesTotal tracks report loop iterations by result
	ReportCyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nodepulse_report_cycles_total",
			Help: "Total number of stats report cycles",
		},
		[]string{"result"},
	)

	// StatsSaveErrorsTotal tracks local stats persistence failures
	StatsSaveErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nodepulse_stats_save_errors_total",
			Help: "Total number of failed node stats saves",
		},
	)

	// DBConnectionPoolUsage tracks database connection pool utilization
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "nodepulse_db_pool_usage_percent",
			Help: "Database connection pool usage percentage",
		},
	)
)
