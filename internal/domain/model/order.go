package model

import (
	"time"

	"github.com/kkk1998sss/webinar-sub002/internal/domain"
)

type OrderStatus string

const (
	OrderStatusPending  OrderStatus = "pending"  // created at the gateway, awaiting payment
	OrderStatusCaptured OrderStatus = "captured" // payment captured; terminal
	OrderStatusFailed   OrderStatus = "failed"   // payment failed; terminal
)

func (s OrderStatus) Terminal() bool {
	return s == OrderStatusCaptured || s == OrderStatusFailed
}

// Order records a payment intent created before the user pays.
// GatewayOrderID is the canonical key for every lookup.
type Order struct {
	ID               string // UUID
	GatewayOrderID   string // provider order id, unique
	GatewayPaymentID *string
	Signature        *string // checkout signature or webhook event id that captured it
	Receipt          string
	UserID           string
	Amount           int64 // minor units (paise)
	Currency         string
	PlanType         PlanType
	WebinarID        *string
	Status           OrderStatus
	CreatedAt        time.Time
	UpdatedAt        time.Time
	CapturedAt       *time.Time
}

// NewPendingOrder validates and constructs a Pending order.
func NewPendingOrder(id, gatewayOrderID, receipt, userID string, amount int64, currency string, plan PlanType, webinarID *string, now time.Time) (*Order, error) {
	if id == "" || gatewayOrderID == "" || userID == "" || amount <= 0 || currency == "" {
		return nil, domain.ErrInvalidArgument
	}
	if !plan.Valid() {
		return nil, domain.ErrInvalidPlanType
	}
	if plan == PlanPaidWebinar && (webinarID == nil || *webinarID == "") {
		return nil, domain.ErrInvalidArgument
	}
	return &Order{
		ID:             id,
		GatewayOrderID: gatewayOrderID,
		Receipt:        receipt,
		UserID:         userID,
		Amount:         amount,
		Currency:       currency,
		PlanType:       plan,
		WebinarID:      webinarID,
		Status:         OrderStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}
