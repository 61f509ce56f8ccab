package repository

import (
	"context"

	"github.com/kkk1998sss/webinar-sub002/internal/domain/model"
)

// SubscriptionRepository is the entitlement store.
type SubscriptionRepository interface {
	// Create inserts a new subscription. A second row for the same order id
	// is rejected by the storage layer with ErrAlreadyExists.
	Create(ctx context.Context, tx Tx, s *model.Subscription) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Subscription, error)
	FindByOrderID(ctx context.Context, tx Tx, orderID string) (*model.Subscription, error)
	// ListActiveByUser returns active rows, most recent StartDate first.
	ListActiveByUser(ctx context.Context, tx Tx, userID string) ([]*model.Subscription, error)
	ListByUser(ctx context.Context, tx Tx, userID string) ([]*model.Subscription, error)
	Deactivate(ctx context.Context, tx Tx, id string) error
	// DeactivateActiveByUserAndPlan returns the number of rows deactivated.
	DeactivateActiveByUserAndPlan(ctx context.Context, tx Tx, userID string, plan model.PlanType) (int, error)
	HasSource(ctx context.Context, tx Tx, userID string, source model.EntitlementSource) (bool, error)

	// --- Statistics read-only methods ---
	CountValidByPlan(ctx context.Context, tx Tx) (map[model.PlanType]int, error)
}

// WebinarGrantRepository stores per-webinar grants.
type WebinarGrantRepository interface {
	// Create is idempotent on (user, webinar, order): a repeat returns ErrAlreadyExists.
	Create(ctx context.Context, tx Tx, g *model.WebinarGrant) error
	FindByOrderID(ctx context.Context, tx Tx, orderID string) (*model.WebinarGrant, error)
	Exists(ctx context.Context, tx Tx, userID, webinarID string) (bool, error)
	ListByUser(ctx context.Context, tx Tx, userID string) ([]*model.WebinarGrant, error)
}
