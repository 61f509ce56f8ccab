// File: internal/usecase/entitlement_resolver.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"github.com/kkk1998sss/webinar-sub002/internal/domain"
	"github.com/kkk1998sss/webinar-sub002/internal/domain/model"
	"github.com/kkk1998sss/webinar-sub002/internal/domain/ports/repository"
	"github.com/kkk1998sss/webinar-sub002/internal/infra/metrics"
)

// Resolution is the outcome of turning a captured order (or an admin grant)
// into an entitlement. Exactly one of Subscription or Grant is set.
type Resolution struct {
	Subscription *model.Subscription
	Grant        *model.WebinarGrant
	// Superseded counts FourDay rows deactivated by a SixMonth purchase.
	Superseded int
	// Duplicate is true when the entitlement already existed and nothing was written.
	Duplicate bool
}

// GrantInput describes an entitlement created without a payment.
type GrantInput struct {
	UserID    string
	PlanType  model.PlanType
	Source    model.EntitlementSource
	WebinarID string
	Note      string
}

// EntitlementResolver maps captured orders to subscriptions or webinar grants.
// Every write happens inside the caller's transaction.
type EntitlementResolver struct {
	subs    repository.SubscriptionRepository
	grants  repository.WebinarGrantRepository
	users   repository.UserRepository
	catalog repository.WebinarCatalog
	tm      repository.TransactionManager
	log     *zerolog.Logger
	now     func() time.Time
}

func NewEntitlementResolver(
	subs repository.SubscriptionRepository,
	grants repository.WebinarGrantRepository,
	users repository.UserRepository,
	catalog repository.WebinarCatalog,
	tm repository.TransactionManager,
	logger *zerolog.Logger,
) *EntitlementResolver {
	return &EntitlementResolver{
		subs:    subs,
		grants:  grants,
		users:   users,
		catalog: catalog,
		tm:      tm,
		log:     logger,
		now:     time.Now,
	}
}

func (r *EntitlementResolver) SetClock(now func() time.Time) { r.now = now }

// Resolve creates the entitlement for a captured order. It is idempotent per
// gateway order id: a second call returns the existing row with Duplicate set.
func (r *EntitlementResolver) Resolve(ctx context.Context, tx repository.Tx, order *model.Order) (*Resolution, error) {
	if order == nil {
		return nil, domain.ErrInvalidArgument
	}
	if order.Status != model.OrderStatusCaptured {
		return nil, fmt.Errorf("%w: order %s is %s", domain.ErrInvalidTransition, order.GatewayOrderID, order.Status)
	}
	if !order.PlanType.Valid() {
		return nil, fmt.Errorf("%w: order %s has plan %q", domain.ErrInvalidPlanType, order.GatewayOrderID, order.PlanType)
	}

	user, err := r.users.FindByID(ctx, tx, order.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: %w: order %s references user %s", domain.ErrDataIntegrity, domain.ErrUserNotFound, order.GatewayOrderID, order.UserID)
		}
		return nil, err
	}

	orderID := order.GatewayOrderID
	if order.PlanType == model.PlanPaidWebinar {
		if order.WebinarID == nil || *order.WebinarID == "" {
			return nil, fmt.Errorf("%w: webinar order %s has no webinar id", domain.ErrDataIntegrity, orderID)
		}
		return r.grantWebinar(ctx, tx, user.ID, *order.WebinarID, &orderID, model.SourcePayment)
	}

	if existing, err := r.subs.FindByOrderID(ctx, tx, orderID); err == nil {
		return &Resolution{Subscription: existing, Duplicate: true}, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	res, err := r.createSubscription(ctx, tx, user, &orderID, order.PlanType, model.SourcePayment, "")
	if errors.Is(err, domain.ErrAlreadyExists) {
		// A concurrent resolver won the insert; the unique order id holds.
		existing, ferr := r.subs.FindByOrderID(ctx, tx, orderID)
		if ferr != nil {
			return nil, ferr
		}
		return &Resolution{Subscription: existing, Duplicate: true}, nil
	}
	return res, err
}

// Grant creates an admin or free-trial entitlement in its own transaction.
func (r *EntitlementResolver) Grant(ctx context.Context, in GrantInput) (*Resolution, error) {
	if in.UserID == "" {
		return nil, fmt.Errorf("%w: user id is required", domain.ErrInvalidArgument)
	}
	if !in.PlanType.Valid() {
		return nil, domain.ErrInvalidPlanType
	}
	switch in.Source {
	case model.SourceAdmin:
	case model.SourceFreeTrial:
		if in.PlanType != model.PlanFourDay {
			return nil, fmt.Errorf("%w: free trial is only available for %s", domain.ErrInvalidArgument, model.PlanFourDay)
		}
	default:
		return nil, fmt.Errorf("%w: grant source %q", domain.ErrInvalidArgument, in.Source)
	}
	if in.PlanType == model.PlanPaidWebinar && in.WebinarID == "" {
		return nil, fmt.Errorf("%w: webinar id is required", domain.ErrInvalidArgument)
	}

	var res *Resolution
	err := r.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		user, err := r.users.FindByID(ctx, tx, in.UserID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.ErrUserNotFound
			}
			return err
		}

		if in.PlanType == model.PlanPaidWebinar {
			res, err = r.grantWebinar(ctx, tx, user.ID, in.WebinarID, nil, in.Source)
			return err
		}

		if in.Source == model.SourceFreeTrial {
			used, err := r.subs.HasSource(ctx, tx, user.ID, model.SourceFreeTrial)
			if err != nil {
				return err
			}
			if used {
				return domain.ErrFreeTrialConsumed
			}
		}

		res, err = r.createSubscription(ctx, tx, user, nil, in.PlanType, in.Source, in.Note)
		if errors.Is(err, domain.ErrAlreadyExists) && in.Source == model.SourceFreeTrial {
			return domain.ErrFreeTrialConsumed
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	r.Record(res)
	metrics.IncGrant(string(in.Source), string(in.PlanType))
	r.log.Info().
		Str("user_id", in.UserID).
		Str("plan_type", string(in.PlanType)).
		Str("source", string(in.Source)).
		Bool("duplicate", res.Duplicate).
		Msg("entitlement granted")
	return res, nil
}

// Record emits metrics for a committed resolution.
func (r *EntitlementResolver) Record(res *Resolution) {
	if res == nil || res.Duplicate {
		return
	}
	if s := res.Subscription; s != nil {
		metrics.IncSubscriptionCreated(s.PlanType, s.Source)
	}
	if res.Superseded > 0 {
		metrics.AddSubscriptionsSuperseded(res.Superseded)
	}
}

func (r *EntitlementResolver) createSubscription(ctx context.Context, tx repository.Tx, user *model.User, orderID *string, plan model.PlanType, source model.EntitlementSource, note string) (*Resolution, error) {
	now := r.now()
	sub, err := model.NewSubscription(uuid.NewString(), user.ID, orderID, plan, source, now)
	if err != nil {
		return nil, err
	}
	sub.Note = note

	res := &Resolution{Subscription: sub}
	if plan == model.PlanSixMonth {
		// SixMonth supersedes any active FourDay in the same transaction.
		n, err := r.subs.DeactivateActiveByUserAndPlan(ctx, tx, user.ID, model.PlanFourDay)
		if err != nil {
			return nil, err
		}
		res.Superseded = n
	}

	if err := r.subs.Create(ctx, tx, sub); err != nil {
		return nil, err
	}

	if !user.IsActive {
		if err := r.users.SetAccountActive(ctx, tx, user.ID, true); err != nil {
			return nil, err
		}
	}

	r.log.Debug().
		Str("user_id", user.ID).
		Str("subscription_id", sub.ID).
		Str("plan_type", string(plan)).
		Str("source", string(source)).
		Time("end_date", sub.EndDate).
		Int("superseded", res.Superseded).
		Msg("subscription created")
	return res, nil
}

func (r *EntitlementResolver) grantWebinar(ctx context.Context, tx repository.Tx, userID, webinarID string, orderID *string, source model.EntitlementSource) (*Resolution, error) {
	if orderID != nil {
		if g, err := r.grants.FindByOrderID(ctx, tx, *orderID); err == nil {
			return &Resolution{Grant: g, Duplicate: true}, nil
		} else if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}

	if _, err := r.catalog.FindWebinar(ctx, tx, webinarID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			if orderID != nil {
				return nil, fmt.Errorf("%w: %w: order %s", domain.ErrDataIntegrity, domain.ErrWebinarNotFound, *orderID)
			}
			return nil, domain.ErrWebinarNotFound
		}
		return nil, err
	}

	g, err := model.NewWebinarGrant(uuid.NewString(), userID, webinarID, orderID, source, r.now())
	if err != nil {
		return nil, err
	}
	if err := r.grants.Create(ctx, tx, g); err != nil {
		if !errors.Is(err, domain.ErrAlreadyExists) {
			return nil, err
		}
		if orderID != nil {
			existing, ferr := r.grants.FindByOrderID(ctx, tx, *orderID)
			if ferr != nil {
				return nil, ferr
			}
			return &Resolution{Grant: existing, Duplicate: true}, nil
		}
		existing, ferr := r.manualGrant(ctx, tx, userID, webinarID)
		if ferr != nil {
			return nil, ferr
		}
		return &Resolution{Grant: existing, Duplicate: true}, nil
	}
	return &Resolution{Grant: g}, nil
}

// manualGrant finds the order-less grant a repeat admin grant collided with.
func (r *EntitlementResolver) manualGrant(ctx context.Context, tx repository.Tx, userID, webinarID string) (*model.WebinarGrant, error) {
	grants, err := r.grants.ListByUser(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	for _, g := range grants {
		if g.OrderID == nil && g.WebinarID == webinarID {
			return g, nil
		}
	}
	return nil, fmt.Errorf("%w: grant conflict without a matching row", domain.ErrTransactionConflict)
}
