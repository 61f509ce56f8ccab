package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/kkk1998sss/webinar-sub002/internal/domain"
)

// PlanType is the closed set of purchasable products.
type PlanType string

const (
	PlanFourDay     PlanType = "four_day"
	PlanSixMonth    PlanType = "six_month"
	PlanPaidWebinar PlanType = "paid_webinar"
)

const day = 24 * time.Hour

// DripSlots is the number of drip-released content slots of a FourDay plan.
const DripSlots = 4

// ParsePlanType accepts the canonical snake_case names as well as the
// camel-case names used by older clients ("FourDay", "sixMonth").
func ParsePlanType(s string) (PlanType, error) {
	norm := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "_", ""))
	switch norm {
	case "fourday", "4day", "fourdays":
		return PlanFourDay, nil
	case "sixmonth", "6month", "sixmonths":
		return PlanSixMonth, nil
	case "paidwebinar", "webinar":
		return PlanPaidWebinar, nil
	}
	return "", fmt.Errorf("%w: %q", domain.ErrInvalidPlanType, s)
}

func (p PlanType) Valid() bool {
	switch p {
	case PlanFourDay, PlanSixMonth, PlanPaidWebinar:
		return true
	}
	return false
}

// IsSubscription reports whether the plan creates a Subscription row
// (as opposed to a per-webinar grant).
func (p PlanType) IsSubscription() bool {
	return p == PlanFourDay || p == PlanSixMonth
}

// PlanDuration returns the validity window of a subscription plan.
func PlanDuration(p PlanType) (time.Duration, error) {
	switch p {
	case PlanFourDay:
		return 4 * day, nil
	case PlanSixMonth:
		return 180 * day, nil
	}
	return 0, fmt.Errorf("%w: %q has no duration", domain.ErrInvalidPlanType, p)
}

// ComputeUnlockState builds the drip schedule for a plan starting at now.
// Only FourDay carries drip content; every other plan returns nil.
// Slot k (1-based) expires at now + (2+k) days.
func ComputeUnlockState(p PlanType, now time.Time) *UnlockState {
	if p != PlanFourDay {
		return nil
	}
	st := &UnlockState{
		CurrentDay:     1,
		UnlockedVideos: []int{1},
		ExpiryDates:    make(map[string]time.Time, DripSlots),
	}
	for k := 1; k <= DripSlots; k++ {
		st.ExpiryDates[SlotKey(k)] = now.Add(time.Duration(2+k) * day)
	}
	return st
}

// SlotKey is the content key of drip slot k, e.g. "day2".
func SlotKey(k int) string { return fmt.Sprintf("day%d", k) }
