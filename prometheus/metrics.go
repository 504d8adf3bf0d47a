package prometheus

import (
	"time"

	"github.com/vkrizan/insights-host-inventory/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Identity metrics
	IdentityAttemptsCounter prometheus.Counter
	IdentityFailuresCounter prometheus.Counter

	// Database operation metrics
	DbOperationDuration *prometheus.HistogramVec

	// Host operation metrics
	HostOperationsCounter *prometheus.CounterVec

	// Ambiguous identity matches rejected by the matcher
	AmbiguousMatchCounter prometheus.Counter

	// Account specific metrics
	HostsPerAccountGauge *prometheus.GaugeVec
)

// InitMetrics initializes Prometheus metrics with configuration
func InitMetrics(config *config.Config) {
	// Use metric prefix from configuration
	prefix := config.Metrics.Prefix

	// Identity metrics
	IdentityAttemptsCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: prefix + "_identity_attempts_total",
			Help: "Total number of identity resolution attempts",
		},
	)

	IdentityFailuresCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: prefix + "_identity_failures_total",
			Help: "Total number of rejected identity headers or tokens",
		},
	)

	// Database operation metrics
	DbOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    prefix + "_db_operation_duration_seconds",
			Help:    "Duration of database operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation_type"},
	)

	// Host operation metrics
	HostOperationsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_operations_total",
			Help: "Total number of host operations",
		},
		[]string{"operation"},
	)

	AmbiguousMatchCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: prefix + "_ambiguous_matches_total",
			Help: "Total number of submissions rejected for matching multiple hosts",
		},
	)

	// Account specific metrics
	HostsPerAccountGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: prefix + "_hosts_per_account",
			Help: "Number of hosts per account",
		},
		[]string{"account"},
	)
}

// TrackDBOperation returns a function that records the duration of a database operation
func TrackDBOperation(operationType string) func(startTime time.Time) {
	return func(startTime time.Time) {
		duration := time.Since(startTime).Seconds()
		DbOperationDuration.WithLabelValues(operationType).Observe(duration)
	}
}

// RecordHostOperation increments the counter for host operations
func RecordHostOperation(operation string) {
	HostOperationsCounter.WithLabelValues(operation).Inc()
}

// RecordAmbiguousMatch increments the ambiguous match counter
func RecordAmbiguousMatch() {
	AmbiguousMatchCounter.Inc()
}

// UpdateHostsPerAccount updates the gauge for hosts per account
func UpdateHostsPerAccount(account string, count int) {
	HostsPerAccountGauge.WithLabelValues(account).Set(float64(count))
}
