package metrics

import (
	"github.com/kkk1998sss/webinar-sub002/internal/domain/model"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		subscriptionsCreatedTotal,
		subscriptionsSupersededTotal,
		subscriptionsValid,
		accessDecisionsTotal,
	)
}

var (
	subscriptionsCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subscriptions_created_total",
			Help: "Subscriptions created by the entitlement resolver, by plan and source.",
		},
		[]string{"plan", "source"},
	)

	subscriptionsSupersededTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "subscriptions_superseded_total",
			Help: "FourDay subscriptions deactivated by a SixMonth upgrade.",
		},
	)

	subscriptionsValid = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "subscriptions_valid",
			Help: "Current number of active, unexpired subscriptions by plan.",
		},
		[]string{"plan"},
	)

	accessDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "access_decisions_total",
			Help: "Access gate decisions by capability, outcome and reason.",
		},
		[]string{"capability", "allowed", "reason"},
	)
)

func IncSubscriptionCreated(plan model.PlanType, source model.EntitlementSource) {
	subscriptionsCreatedTotal.WithLabelValues(string(plan), string(source)).Inc()
}

func AddSubscriptionsSuperseded(n int) {
	subscriptionsSupersededTotal.Add(float64(n))
}

func SetSubscriptionsValid(counts map[model.PlanType]int) {
	for _, plan := range []model.PlanType{model.PlanFourDay, model.PlanSixMonth} {
		subscriptionsValid.WithLabelValues(string(plan)).Set(float64(counts[plan]))
	}
}

func ObserveAccessDecision(capability string, d model.AccessDecision) {
	allowed := "false"
	if d.Allowed {
		allowed = "true"
	}
	accessDecisionsTotal.WithLabelValues(norm(capability), allowed, string(d.Reason)).Inc()
}
