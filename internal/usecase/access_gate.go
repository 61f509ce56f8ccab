// File: internal/usecase/access_gate.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/kkk1998sss/webinar-sub002/internal/domain"
	"github.com/kkk1998sss/webinar-sub002/internal/domain/model"
	"github.com/kkk1998sss/webinar-sub002/internal/domain/ports/repository"
	ucport "github.com/kkk1998sss/webinar-sub002/internal/domain/ports/usecase"
	"github.com/kkk1998sss/webinar-sub002/internal/infra/metrics"
)

// Compile-time check
var _ ucport.AccessEvaluator = (*AccessGate)(nil)

// EntitlementSummary is everything a user currently holds.
type EntitlementSummary struct {
	User          *model.User
	Subscriptions []*model.Subscription
	Grants        []*model.WebinarGrant
	// Current is the subscription the gate would grant access with, if any.
	Current *model.Subscription
}

// AccessGate is a pure read over the entitlement store. Decisions are
// computed against the clock on every call and never cached.
type AccessGate struct {
	subs   repository.SubscriptionRepository
	grants repository.WebinarGrantRepository
	users  repository.UserRepository
	log    *zerolog.Logger
	now    func() time.Time
}

func NewAccessGate(subs repository.SubscriptionRepository, grants repository.WebinarGrantRepository, users repository.UserRepository, logger *zerolog.Logger) *AccessGate {
	return &AccessGate{subs: subs, grants: grants, users: users, log: logger, now: time.Now}
}

func (g *AccessGate) SetClock(now func() time.Time) { g.now = now }

// Evaluate decides whether userID satisfies capability c right now.
// Storage failures deny with ReasonStorageUnavailable and return the error.
func (g *AccessGate) Evaluate(ctx context.Context, userID string, c model.Capability) (model.AccessDecision, error) {
	if err := c.Validate(); err != nil {
		return model.Deny(model.ReasonNoActiveEntitlement), fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
	}
	d, err := g.evaluate(ctx, userID, c)
	if err != nil {
		g.log.Error().Err(err).Str("user_id", userID).Str("capability", c.String()).Msg("access evaluation failed; denying")
		d = model.Deny(model.ReasonStorageUnavailable)
		err = fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	metrics.ObserveAccessDecision(c.String(), d)
	return d, err
}

func (g *AccessGate) evaluate(ctx context.Context, userID string, c model.Capability) (model.AccessDecision, error) {
	if c.Kind == model.CapWebinarGrant {
		ok, err := g.grants.Exists(ctx, nil, userID, c.WebinarID)
		if err != nil {
			return model.AccessDecision{}, err
		}
		if ok {
			return model.Allow(model.ReasonWebinarGrant, nil), nil
		}
		return model.Deny(model.ReasonNoWebinarGrant), nil
	}

	user, err := g.users.FindByID(ctx, nil, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return model.Deny(model.ReasonUnknownUser), nil
		}
		return model.AccessDecision{}, err
	}

	subs, err := g.subs.ListActiveByUser(ctx, nil, userID)
	if err != nil {
		return model.AccessDecision{}, err
	}
	now := g.now()
	current := currentSubscription(subs, now)

	if current == nil {
		if !user.IsActive {
			return model.Deny(model.ReasonNeverSubscribed), nil
		}
		return model.Deny(model.ReasonNoActiveEntitlement), nil
	}

	switch current.PlanType {
	case model.PlanSixMonth:
		return model.Allow(model.ReasonSixMonthAccess, current), nil
	case model.PlanFourDay:
		switch c.Kind {
		case model.CapSixMonthOnly:
			return model.Deny(model.ReasonUpgradeRequired), nil
		case model.CapDripContent:
			if !current.UnlockedContent.IsVisible(c.Day, now) {
				return model.Deny(model.ReasonContentLocked), nil
			}
		}
		return model.Allow(model.ReasonFourDayAccess, current), nil
	}
	return model.Deny(model.ReasonNoActiveEntitlement), nil
}

// currentSubscription picks the entitlement that governs access at now.
// A valid SixMonth always wins; otherwise the most recent valid FourDay.
func currentSubscription(subs []*model.Subscription, now time.Time) *model.Subscription {
	var fourDay *model.Subscription
	for _, s := range subs {
		if !s.IsValidAt(now) {
			continue
		}
		switch s.PlanType {
		case model.PlanSixMonth:
			return s
		case model.PlanFourDay:
			if fourDay == nil || s.StartDate.After(fourDay.StartDate) {
				fourDay = s
			}
		}
	}
	return fourDay
}

// Summary lists the user's subscriptions and webinar grants.
func (g *AccessGate) Summary(ctx context.Context, userID string) (*EntitlementSummary, error) {
	user, err := g.users.FindByID(ctx, nil, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	subs, err := g.subs.ListByUser(ctx, nil, userID)
	if err != nil {
		return nil, err
	}
	grants, err := g.grants.ListByUser(ctx, nil, userID)
	if err != nil {
		return nil, err
	}
	return &EntitlementSummary{
		User:          user,
		Subscriptions: subs,
		Grants:        grants,
		Current:       currentSubscription(subs, g.now()),
	}, nil
}
