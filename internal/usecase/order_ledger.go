// File: internal/usecase/order_ledger.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/kkk1998sss/webinar-sub002/internal/domain"
	"github.com/kkk1998sss/webinar-sub002/internal/domain/model"
	"github.com/kkk1998sss/webinar-sub002/internal/domain/ports/adapter"
	"github.com/kkk1998sss/webinar-sub002/internal/domain/ports/repository"
	"github.com/kkk1998sss/webinar-sub002/internal/infra/metrics"
)

// PriceBook holds the server-side price of each subscription plan.
// PaidWebinar prices come from the content catalog.
type PriceBook struct {
	Currency string
	FourDay  int64
	SixMonth int64
}

func (p PriceBook) priceOf(plan model.PlanType) (int64, bool) {
	switch plan {
	case model.PlanFourDay:
		return p.FourDay, true
	case model.PlanSixMonth:
		return p.SixMonth, true
	}
	return 0, false
}

// CreateOrderInput is what a signed-in user asks to buy.
type CreateOrderInput struct {
	UserID    string
	Amount    int64
	Currency  string
	PlanType  model.PlanType
	WebinarID *string
}

// OrderLedger owns the order lifecycle: pending -> captured | failed.
// Terminal states never change again.
type OrderLedger struct {
	orders  repository.OrderRepository
	users   repository.UserRepository
	catalog repository.WebinarCatalog
	gateway adapter.PaymentGateway
	prices  PriceBook
	log     *zerolog.Logger
	now     func() time.Time
}

func NewOrderLedger(
	orders repository.OrderRepository,
	users repository.UserRepository,
	catalog repository.WebinarCatalog,
	gateway adapter.PaymentGateway,
	prices PriceBook,
	logger *zerolog.Logger,
) *OrderLedger {
	return &OrderLedger{
		orders:  orders,
		users:   users,
		catalog: catalog,
		gateway: gateway,
		prices:  prices,
		log:     logger,
		now:     time.Now,
	}
}

// SetClock replaces the time source.
func (l *OrderLedger) SetClock(now func() time.Time) { l.now = now }

// CreateOrder validates the purchase against server-side prices, registers
// the intent at the gateway and stores a pending order.
func (l *OrderLedger) CreateOrder(ctx context.Context, in CreateOrderInput) (*model.Order, error) {
	if in.UserID == "" {
		return nil, fmt.Errorf("%w: user id is required", domain.ErrInvalidArgument)
	}
	if !in.PlanType.Valid() {
		return nil, domain.ErrInvalidPlanType
	}
	currency := l.prices.Currency
	if in.Currency != "" && in.Currency != currency {
		return nil, fmt.Errorf("%w: unsupported currency %q", domain.ErrInvalidArgument, in.Currency)
	}

	if _, err := l.users.FindByID(ctx, nil, in.UserID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}

	expected, err := l.expectedAmount(ctx, in)
	if err != nil {
		return nil, err
	}
	if in.Amount != expected {
		l.log.Warn().
			Str("user_id", in.UserID).
			Str("plan_type", string(in.PlanType)).
			Int64("amount", in.Amount).
			Int64("expected", expected).
			Msg("order amount does not match price")
		return nil, domain.ErrAmountMismatch
	}

	receipt := "rcpt_" + ulid.Make().String()
	notes := map[string]string{
		"user_id":   in.UserID,
		"plan_type": string(in.PlanType),
	}
	if in.WebinarID != nil {
		notes["webinar_id"] = *in.WebinarID
	}

	gwOrder, err := l.gateway.CreateOrder(ctx, expected, currency, receipt, notes)
	if err != nil {
		metrics.IncGatewayError("create_order")
		l.log.Error().Err(err).Str("user_id", in.UserID).Str("receipt", receipt).Msg("gateway create order failed")
		return nil, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}

	o, err := model.NewPendingOrder(uuid.NewString(), gwOrder.ID, receipt, in.UserID, expected, currency, in.PlanType, in.WebinarID, l.now())
	if err != nil {
		return nil, err
	}
	if err := l.orders.Save(ctx, nil, o); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			return nil, domain.ErrDuplicateOrder
		}
		return nil, err
	}

	metrics.IncOrder(string(model.OrderStatusPending), string(o.PlanType))
	l.log.Info().
		Str("order_id", o.GatewayOrderID).
		Str("user_id", o.UserID).
		Str("plan_type", string(o.PlanType)).
		Int64("amount", o.Amount).
		Msg("order created")
	return o, nil
}

func (l *OrderLedger) expectedAmount(ctx context.Context, in CreateOrderInput) (int64, error) {
	if price, ok := l.prices.priceOf(in.PlanType); ok {
		return price, nil
	}
	if in.WebinarID == nil || *in.WebinarID == "" {
		return 0, fmt.Errorf("%w: webinar id is required for %s", domain.ErrInvalidArgument, in.PlanType)
	}
	w, err := l.catalog.FindWebinar(ctx, nil, *in.WebinarID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return 0, domain.ErrWebinarNotFound
		}
		return 0, err
	}
	if !w.IsPaid || w.Price <= 0 {
		return 0, fmt.Errorf("%w: webinar %s is free", domain.ErrInvalidArgument, w.ID)
	}
	return w.Price, nil
}

// MarkCaptured moves a pending order to captured. The boolean is true only
// for the call that performed the transition; repeats get false and the
// stored order. A failed order cannot be captured.
func (l *OrderLedger) MarkCaptured(ctx context.Context, tx repository.Tx, gatewayOrderID, gatewayPaymentID, signature string) (*model.Order, bool, error) {
	if gatewayOrderID == "" || gatewayPaymentID == "" {
		return nil, false, fmt.Errorf("%w: order and payment ids are required", domain.ErrInvalidArgument)
	}
	ok, err := l.orders.TransitionStatus(ctx, tx, gatewayOrderID, model.OrderStatusCaptured, &gatewayPaymentID, &signature, l.now())
	if err != nil {
		return nil, false, err
	}

	o, err := l.orders.FindByGatewayOrderID(ctx, tx, gatewayOrderID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, false, domain.ErrUnknownOrder
		}
		return nil, false, err
	}
	if ok {
		return o, true, nil
	}

	switch o.Status {
	case model.OrderStatusCaptured:
		if o.GatewayPaymentID != nil && *o.GatewayPaymentID != gatewayPaymentID {
			l.log.Warn().
				Str("order_id", gatewayOrderID).
				Str("payment_id", gatewayPaymentID).
				Str("captured_payment_id", *o.GatewayPaymentID).
				Msg("second payment reported for captured order")
		}
		return o, false, nil
	case model.OrderStatusFailed:
		return o, false, fmt.Errorf("%w: order %s already failed", domain.ErrInvalidTransition, gatewayOrderID)
	}
	// Still pending after a failed conditional update: lost a race with a
	// concurrent writer that rolled back.
	return o, false, domain.ErrTransactionConflict
}

// MarkFailed moves a pending order to failed. Failing an already failed
// order is a no-op; failing a captured order is rejected.
func (l *OrderLedger) MarkFailed(ctx context.Context, tx repository.Tx, gatewayOrderID, gatewayPaymentID string) (*model.Order, error) {
	var pid *string
	if gatewayPaymentID != "" {
		pid = &gatewayPaymentID
	}
	ok, err := l.orders.TransitionStatus(ctx, tx, gatewayOrderID, model.OrderStatusFailed, pid, nil, l.now())
	if err != nil {
		return nil, err
	}
	o, err := l.orders.FindByGatewayOrderID(ctx, tx, gatewayOrderID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrUnknownOrder
		}
		return nil, err
	}
	if !ok && o.Status == model.OrderStatusCaptured {
		return o, fmt.Errorf("%w: order %s already captured", domain.ErrInvalidTransition, gatewayOrderID)
	}
	return o, nil
}

// Get returns the order for a gateway order id.
func (l *OrderLedger) Get(ctx context.Context, gatewayOrderID string) (*model.Order, error) {
	o, err := l.orders.FindByGatewayOrderID(ctx, nil, gatewayOrderID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrUnknownOrder
	}
	return o, err
}

// ListStale returns pending orders created before now-olderThan.
func (l *OrderLedger) ListStale(ctx context.Context, olderThan time.Duration, limit int) ([]*model.Order, error) {
	return l.orders.ListPendingOlderThan(ctx, nil, l.now().Add(-olderThan), limit)
}
