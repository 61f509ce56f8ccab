package sched

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/kkk1998sss/webinar-sub002/internal/domain/ports/repository"
	"github.com/kkk1998sss/webinar-sub002/internal/infra/metrics"
)

// PoolStats reports connection pool occupancy.
type PoolStats func() (total, idle, acquired int32)

// StatsWorker refreshes entitlement and pool gauges. It only reads.
type StatsWorker struct {
	subs  repository.SubscriptionRepository
	stats PoolStats
	log   *zerolog.Logger
}

func NewStatsWorker(subs repository.SubscriptionRepository, stats PoolStats, logger *zerolog.Logger) *StatsWorker {
	l := logger.With().Str("component", "StatsWorker").Logger()
	return &StatsWorker{subs: subs, stats: stats, log: &l}
}

func (w *StatsWorker) Name() string { return "entitlement_stats" }

func (w *StatsWorker) RunOnce(ctx context.Context) error {
	if w.stats != nil {
		metrics.SetDBPoolStats(w.stats())
	}
	counts, err := w.subs.CountValidByPlan(ctx, nil)
	if err != nil {
		return err
	}
	metrics.SetSubscriptionsValid(counts)
	w.log.Debug().Interface("valid", counts).Msg("subscription gauges refreshed")
	return nil
}
