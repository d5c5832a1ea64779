/**
 * @description
 * Prometheus collectors for the points ledger. Collectors register on the default
 * registry and are exposed by promhttp on /metrics.
 */

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var LedgerMutations = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "points",
	Name:      "ledger_mutations_total",
	Help:      "Committed ledger entries by category",
}, []string{"category"})

var LedgerPoints = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "points",
	Name:      "ledger_points_total",
	Help:      "Points moved by committed ledger entries",
}, []string{"direction"})

var ConflictRetries = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "points",
	Name:      "ledger_conflict_retries_total",
	Help:      "Transactions retried after a serialization failure or deadlock",
})

var OperationErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "points",
	Name:      "operation_errors_total",
	Help:      "Failed ledger operations by operation and error kind",
}, []string{"operation", "kind"})

var OperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "points",
	Name:      "operation_duration_seconds",
	Help:      "Latency of ledger operations including retries",
	Buckets:   prometheus.DefBuckets,
}, []string{"operation"})

var NotifyFailures = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "points",
	Name:      "notify_failures_total",
	Help:      "Balance notifications that could not be delivered",
})

var LedgerDriftAccounts = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "points",
	Name:      "ledger_drift_accounts",
	Help:      "Accounts whose balance differed from their ledger sum in the last audit",
})

// RecordEntry counts one committed ledger entry.
func RecordEntry(category string, amount int64) {
	LedgerMutations.WithLabelValues(category).Inc()
	if amount >= 0 {
		LedgerPoints.WithLabelValues("credit").Add(float64(amount))
		return
	}
	LedgerPoints.WithLabelValues("debit").Add(float64(-amount))
}
