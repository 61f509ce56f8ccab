package model

import (
	"slices"
	"time"

	"github.com/kkk1998sss/webinar-sub002/internal/domain"
)

// EntitlementSource records why an entitlement exists.
type EntitlementSource string

const (
	SourcePayment   EntitlementSource = "payment"
	SourceAdmin     EntitlementSource = "admin"
	SourceFreeTrial EntitlementSource = "free_trial"
)

func (s EntitlementSource) Valid() bool {
	switch s {
	case SourcePayment, SourceAdmin, SourceFreeTrial:
		return true
	}
	return false
}

// UnlockState is the drip-content document embedded in a FourDay subscription.
type UnlockState struct {
	CurrentDay     int                  `json:"currentDay"`
	UnlockedVideos []int                `json:"unlockedVideos"`
	ExpiryDates    map[string]time.Time `json:"expiryDates"`
}

// IsVisible reports whether drip slot k is unlocked and not yet expired at now.
func (u *UnlockState) IsVisible(k int, now time.Time) bool {
	if u == nil || !slices.Contains(u.UnlockedVideos, k) {
		return false
	}
	exp, ok := u.ExpiryDates[SlotKey(k)]
	if !ok {
		return false
	}
	return now.Before(exp)
}

// Subscription is a time-bounded access grant for a subscription plan.
// Rows are never deleted; IsActive=false is the only transition.
type Subscription struct {
	ID              string
	UserID          string
	OrderID         *string // gateway order id; nil for admin grants and free trials
	PlanType        PlanType
	Source          EntitlementSource
	StartDate       time.Time
	EndDate         time.Time
	IsActive        bool
	UnlockedContent *UnlockState
	Note            string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewSubscription builds an active subscription starting at now, using the
// shared plan duration and drip schedule.
func NewSubscription(id, userID string, orderID *string, plan PlanType, source EntitlementSource, now time.Time) (*Subscription, error) {
	if id == "" || userID == "" || !source.Valid() {
		return nil, domain.ErrInvalidArgument
	}
	d, err := PlanDuration(plan)
	if err != nil {
		return nil, err
	}
	return &Subscription{
		ID:              id,
		UserID:          userID,
		OrderID:         orderID,
		PlanType:        plan,
		Source:          source,
		StartDate:       now,
		EndDate:         now.Add(d),
		IsActive:        true,
		UnlockedContent: ComputeUnlockState(plan, now),
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// IsValidAt reports whether the subscription grants access at now.
// Access ends the instant now passes EndDate.
func (s *Subscription) IsValidAt(now time.Time) bool {
	return s != nil && s.IsActive && !now.After(s.EndDate)
}
