package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		PaymentIntakeRequests,
		PaymentIntakeDuration,
		entitlementAlertsTotal,
	)
}

var (
	// Count of intake calls grouped by path, result and bounded reason.
	// path: webhook|verify|reconcile
	// result: captured|duplicate|ignored|ok|rejected|error
	// reason: signature|malformed|forbidden|unknown_order|data_integrity|conflict|timeout|throttled|...
	PaymentIntakeRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_intake_requests_total",
			Help: "Count of payment confirmations by entry point, result and reason.",
		},
		[]string{"path", "result", "reason"},
	)

	// Latency of intake handlers grouped by path.
	PaymentIntakeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_intake_duration_seconds",
			Help:    "Duration of payment confirmation handling in seconds.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"path"},
	)

	// Conditions an operator must look at: unknown orders, integrity
	// violations, captures of failed orders.
	entitlementAlertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "entitlement_alerts_total",
			Help: "Events that require operator attention, by kind.",
		},
		[]string{"kind"},
	)
)

func IncIntake(path, result, reason string) {
	PaymentIntakeRequests.WithLabelValues(norm(path), norm(result), norm(reason)).Inc()
}

func IncAlert(kind string) {
	entitlementAlertsTotal.WithLabelValues(norm(kind)).Inc()
}
