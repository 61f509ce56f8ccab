package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(dbPoolConns, dbTxRetriesTotal) }

var (
	dbPoolConns = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "db_pool_conns",
			Help: "Current state of the Postgres connection pool.",
		},
		[]string{"state"}, // 'total', 'idle', 'acquired'
	)

	dbTxRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_tx_retries_total",
			Help: "Transactions retried after a serialization or deadlock conflict, by unit of work.",
		},
		[]string{"unit"},
	)
)

func SetDBPoolStats(total, idle, acquired int32) {
	dbPoolConns.WithLabelValues("total").Set(float64(total))
	dbPoolConns.WithLabelValues("idle").Set(float64(idle))
	dbPoolConns.WithLabelValues("acquired").Set(float64(acquired))
}

func IncTxRetry(unit string) {
	dbTxRetriesTotal.WithLabelValues(norm(unit)).Inc()
}
