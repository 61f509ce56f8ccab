package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		ordersTotal,
		paymentsRevenueTotal,
		gatewayErrorsTotal,
	)
}

var (
	ordersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_total",
			Help: "Order status transitions (pending/captured/failed).",
		},
		[]string{"status", "plan"},
	)

	paymentsRevenueTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_revenue_total",
			Help: "The total monetary value of captured orders in minor units, labeled by currency.",
		},
		[]string{"currency"},
	)

	gatewayErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_gateway_errors_total",
			Help: "Failed calls to the payment gateway by operation.",
		},
		[]string{"op"},
	)
)

func IncOrder(status, plan string) {
	ordersTotal.WithLabelValues(norm(status), norm(plan)).Inc()
}

func AddPaymentRevenue(currency string, amount int64) {
	paymentsRevenueTotal.WithLabelValues(norm(currency)).Add(float64(amount))
}

func IncGatewayError(op string) {
	gatewayErrorsTotal.WithLabelValues(norm(op)).Inc()
}
