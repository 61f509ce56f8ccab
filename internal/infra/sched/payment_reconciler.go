package sched

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/kkk1998sss/webinar-sub002/internal/domain/model"
	red "github.com/kkk1998sss/webinar-sub002/internal/infra/redis"
	"github.com/kkk1998sss/webinar-sub002/internal/infra/worker"
)

// StaleOrders lists pending orders older than a cutoff.
type StaleOrders interface {
	ListStale(ctx context.Context, olderThan time.Duration, limit int) ([]*model.Order, error)
}

// OrderReconciler asks the gateway about one order and captures it if paid.
type OrderReconciler interface {
	ReconcileOrder(ctx context.Context, gatewayOrderID string) (bool, error)
}

// Submitter runs tasks on a bounded pool.
type Submitter interface {
	Submit(task worker.Task) error
}

const reconcileBatch = 200

// PaymentReconciler periodically scans for stale pending orders and asks the
// gateway whether they were paid. This covers lost webhooks and clients that
// never called verify.
type PaymentReconciler struct {
	orders     StaleOrders
	uc         OrderReconciler
	pool       Submitter
	locker     red.Locker
	staleAfter time.Duration
	lockTTL    time.Duration
	log        *zerolog.Logger
}

// NewPaymentReconciler builds the job. locker may be nil for single-instance
// deployments; pool may be nil to reconcile sequentially.
func NewPaymentReconciler(orders StaleOrders, uc OrderReconciler, pool Submitter, locker red.Locker, staleAfter, lockTTL time.Duration, logger *zerolog.Logger) *PaymentReconciler {
	if staleAfter <= 0 {
		staleAfter = 15 * time.Minute
	}
	if lockTTL <= 0 {
		lockTTL = 5 * time.Minute
	}
	l := logger.With().Str("component", "PaymentReconciler").Logger()
	return &PaymentReconciler{
		orders:     orders,
		uc:         uc,
		pool:       pool,
		locker:     locker,
		staleAfter: staleAfter,
		lockTTL:    lockTTL,
		log:        &l,
	}
}

func (w *PaymentReconciler) Name() string { return "payment_reconciler" }

// RunOnce reconciles one batch. It is a no-op when another instance holds the lock.
func (w *PaymentReconciler) RunOnce(ctx context.Context) error {
	if w.locker != nil {
		token, err := w.locker.TryLock(ctx, red.ReconcileLockKey, w.lockTTL)
		if errors.Is(err, red.ErrLockHeld) {
			w.log.Debug().Msg("reconcile lock held elsewhere, skipping")
			return nil
		}
		if err != nil {
			return err
		}
		defer func() {
			// ctx may already be done; release with a fresh one
			uctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := w.locker.Unlock(uctx, red.ReconcileLockKey, token); err != nil {
				w.log.Warn().Err(err).Msg("reconcile unlock failed")
			}
		}()
	}

	pending, err := w.orders.ListStale(ctx, w.staleAfter, reconcileBatch)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	var (
		mu        sync.Mutex
		captured  int
		failedCnt int
		wg        sync.WaitGroup
	)
	one := func(ctx context.Context, o *model.Order) error {
		ok, err := w.uc.ReconcileOrder(ctx, o.GatewayOrderID)
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			failedCnt++
			w.log.Warn().Err(err).Str("order_id", o.GatewayOrderID).Msg("reconcile failed")
			return nil
		}
		if ok {
			captured++
			w.log.Info().Str("order_id", o.GatewayOrderID).Msg("order reconciled")
		}
		return nil
	}

	for _, o := range pending {
		if w.pool == nil {
			_ = one(ctx, o)
			continue
		}
		o := o
		wg.Add(1)
		err := w.pool.Submit(func(pctx context.Context) error {
			defer wg.Done()
			return one(ctx, o)
		})
		if err != nil {
			wg.Done()
			w.log.Warn().Err(err).Str("order_id", o.GatewayOrderID).Msg("reconcile deferred to next run")
		}
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	w.log.Info().
		Int("scanned", len(pending)).
		Int("captured", captured).
		Int("errors", failedCnt).
		Msg("reconcile pass finished")
	return nil
}
