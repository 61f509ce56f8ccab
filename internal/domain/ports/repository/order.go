package repository

import (
	"context"
	"time"

	"github.com/kkk1998sss/webinar-sub002/internal/domain/model"
)

// -----------------------------
// Orders
// -----------------------------

type OrderRepository interface {
	Save(ctx context.Context, tx Tx, o *model.Order) error
	FindByGatewayOrderID(ctx context.Context, tx Tx, gatewayOrderID string) (*model.Order, error)
	FindByGatewayPaymentID(ctx context.Context, tx Tx, gatewayPaymentID string) (*model.Order, error)
	// TransitionStatus moves an order out of 'pending' only. It returns false
	// when the order was not pending (already terminal or missing).
	TransitionStatus(ctx context.Context, tx Tx, gatewayOrderID string, to model.OrderStatus, paymentID, signature *string, at time.Time) (bool, error)
	ListPendingOlderThan(ctx context.Context, tx Tx, olderThan time.Time, limit int) ([]*model.Order, error)
}

// -----------------------------
// Webhook events
// -----------------------------

type WebhookEventRepository interface {
	// Insert records a verified event; ErrAlreadyExists when (provider, event_id) was seen.
	Insert(ctx context.Context, tx Tx, e *model.WebhookEvent) error
	FindByEventID(ctx context.Context, tx Tx, provider, eventID string) (*model.WebhookEvent, error)
	MarkProcessed(ctx context.Context, tx Tx, id string, processingErr string, at time.Time) error
}
