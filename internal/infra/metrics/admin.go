package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(adminRequestsTotal, adminGrantsTotal) }

var (
	adminRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admin_requests_total",
			Help: "Tracks attempts to use the admin API.",
		},
		[]string{"route", "status"}, // status: 'authorized', 'unauthorized'
	)

	adminGrantsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "entitlement_grants_total",
			Help: "Entitlements created outside the payment path, by source and plan.",
		},
		[]string{"source", "plan"},
	)
)

func IncAdminRequest(route, status string) {
	adminRequestsTotal.WithLabelValues(norm(route), norm(status)).Inc()
}

func IncGrant(source, plan string) {
	adminGrantsTotal.WithLabelValues(norm(source), norm(plan)).Inc()
}
