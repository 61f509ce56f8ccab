package model

import (
	"time"

	"github.com/kkk1998sss/webinar-sub002/internal/domain"
)

// WebinarGrant is a one-off entitlement to a single paid webinar. It never
// interacts with Subscription rows.
type WebinarGrant struct {
	ID        string
	UserID    string
	WebinarID string
	OrderID   *string
	Source    EntitlementSource
	CreatedAt time.Time
}

func NewWebinarGrant(id, userID, webinarID string, orderID *string, source EntitlementSource, now time.Time) (*WebinarGrant, error) {
	if id == "" || userID == "" || webinarID == "" || !source.Valid() {
		return nil, domain.ErrInvalidArgument
	}
	return &WebinarGrant{
		ID:        id,
		UserID:    userID,
		WebinarID: webinarID,
		OrderID:   orderID,
		Source:    source,
		CreatedAt: now,
	}, nil
}

// WebhookEvent is the durable log of a verified gateway webhook, used for
// deduplication and for recording business errors that are not retried.
type WebhookEvent struct {
	ID              string
	Provider        string
	EventID         string
	EventType       string
	GatewayOrderID  string
	Payload         []byte
	ProcessedAt     *time.Time
	ProcessingError string
	CreatedAt       time.Time
}
