//go:build !integration

package model

import (
	"errors"
	"testing"
	"time"

	"github.com/kkk1998sss/webinar-sub002/internal/domain"
)

// --- User Model Tests ---

func TestNewUser(t *testing.T) {
	t.Run("should create a new user successfully", func(t *testing.T) {
		user, err := NewUser("", "  Alice@Example.com ", "Alice")
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if user.ID == "" {
			t.Error("expected user ID to be non-empty")
		}
		if user.Email != "alice@example.com" {
			t.Errorf("expected normalized email, but got %s", user.Email)
		}
		if user.IsActive {
			t.Error("a new account must not be active before any purchase")
		}
	})

	t.Run("should fail with invalid email", func(t *testing.T) {
		user, err := NewUser("", "not-an-email", "Bob")
		if !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, but got %v", err)
		}
		if user != nil {
			t.Error("expected user to be nil on error")
		}
	})
}

// --- Plan Tests ---

func TestParsePlanType(t *testing.T) {
	cases := map[string]PlanType{
		"four_day":    PlanFourDay,
		"FourDay":     PlanFourDay,
		"sixMonth":    PlanSixMonth,
		"SIX_MONTH":   PlanSixMonth,
		"PaidWebinar": PlanPaidWebinar,
	}
	for in, want := range cases {
		got, err := ParsePlanType(in)
		if err != nil {
			t.Fatalf("ParsePlanType(%q): unexpected error %v", in, err)
		}
		if got != want {
			t.Errorf("ParsePlanType(%q) = %q, want %q", in, got, want)
		}
	}

	if _, err := ParsePlanType("lifetime"); !errors.Is(err, domain.ErrInvalidPlanType) {
		t.Errorf("expected ErrInvalidPlanType, got %v", err)
	}
}

func TestPlanDuration(t *testing.T) {
	if d, _ := PlanDuration(PlanFourDay); d != 96*time.Hour {
		t.Errorf("four day duration = %s", d)
	}
	if d, _ := PlanDuration(PlanSixMonth); d != 180*24*time.Hour {
		t.Errorf("six month duration = %s", d)
	}
	if _, err := PlanDuration(PlanPaidWebinar); !errors.Is(err, domain.ErrInvalidPlanType) {
		t.Errorf("paid webinar must not have a duration, got %v", err)
	}
}

func TestComputeUnlockState(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	t.Run("four day plan starts on day one", func(t *testing.T) {
		st := ComputeUnlockState(PlanFourDay, now)
		if st == nil {
			t.Fatal("expected unlock state for four day plan")
		}
		if st.CurrentDay != 1 {
			t.Errorf("expected current day 1, got %d", st.CurrentDay)
		}
		if len(st.UnlockedVideos) != 1 || st.UnlockedVideos[0] != 1 {
			t.Errorf("expected unlocked videos [1], got %v", st.UnlockedVideos)
		}
		if len(st.ExpiryDates) != DripSlots {
			t.Fatalf("expected %d expiry dates, got %d", DripSlots, len(st.ExpiryDates))
		}
		if got := st.ExpiryDates["day1"]; !got.Equal(now.Add(3 * 24 * time.Hour)) {
			t.Errorf("day1 expiry = %s", got)
		}
	})

	t.Run("expiry dates are strictly increasing", func(t *testing.T) {
		st := ComputeUnlockState(PlanFourDay, now)
		for k := 1; k < DripSlots; k++ {
			cur, next := st.ExpiryDates[SlotKey(k)], st.ExpiryDates[SlotKey(k+1)]
			if !cur.Before(next) {
				t.Errorf("expiry of %s (%s) must be before %s (%s)", SlotKey(k), cur, SlotKey(k+1), next)
			}
		}
	})

	t.Run("other plans carry no drip content", func(t *testing.T) {
		if ComputeUnlockState(PlanSixMonth, now) != nil {
			t.Error("six month plan must not have unlock state")
		}
		if ComputeUnlockState(PlanPaidWebinar, now) != nil {
			t.Error("paid webinar must not have unlock state")
		}
	})

	t.Run("visibility follows unlocked set and expiry", func(t *testing.T) {
		st := ComputeUnlockState(PlanFourDay, now)
		if !st.IsVisible(1, now.Add(time.Hour)) {
			t.Error("day 1 should be visible right after purchase")
		}
		if st.IsVisible(2, now.Add(time.Hour)) {
			t.Error("day 2 is not unlocked yet")
		}
		if st.IsVisible(1, now.Add(3*24*time.Hour)) {
			t.Error("day 1 must be hidden once its expiry is reached")
		}
	})
}

// --- Subscription Tests ---

func TestNewSubscription(t *testing.T) {
	now := time.Now()
	orderID := "order_1"

	t.Run("four day subscription", func(t *testing.T) {
		s, err := NewSubscription("sub-1", "user-1", &orderID, PlanFourDay, SourcePayment, now)
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if !s.EndDate.Equal(now.Add(4 * 24 * time.Hour)) {
			t.Errorf("unexpected end date %s", s.EndDate)
		}
		if !s.IsActive || s.UnlockedContent == nil {
			t.Error("expected active subscription with drip content")
		}
	})

	t.Run("rejects webinar plan", func(t *testing.T) {
		_, err := NewSubscription("sub-1", "user-1", &orderID, PlanPaidWebinar, SourcePayment, now)
		if !errors.Is(err, domain.ErrInvalidPlanType) {
			t.Errorf("expected ErrInvalidPlanType, got %v", err)
		}
	})

	t.Run("validity ends exactly at end date", func(t *testing.T) {
		s, _ := NewSubscription("sub-1", "user-1", nil, PlanSixMonth, SourceAdmin, now)
		if !s.IsValidAt(s.EndDate) {
			t.Error("subscription should still be valid at its end date")
		}
		if s.IsValidAt(s.EndDate.Add(time.Nanosecond)) {
			t.Error("subscription must be invalid immediately after its end date")
		}
		s.IsActive = false
		if s.IsValidAt(now) {
			t.Error("deactivated subscription must not be valid")
		}
	})
}

// --- Order Tests ---

func TestNewPendingOrder(t *testing.T) {
	now := time.Now()
	t.Run("creates pending order", func(t *testing.T) {
		o, err := NewPendingOrder("id-1", "order_1", "rcpt", "user-1", 19900, "INR", PlanFourDay, nil, now)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if o.Status != OrderStatusPending {
			t.Errorf("expected pending, got %s", o.Status)
		}
	})

	t.Run("paid webinar requires webinar id", func(t *testing.T) {
		_, err := NewPendingOrder("id-1", "order_1", "rcpt", "user-1", 19900, "INR", PlanPaidWebinar, nil, now)
		if !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("rejects non-positive amount", func(t *testing.T) {
		_, err := NewPendingOrder("id-1", "order_1", "rcpt", "user-1", 0, "INR", PlanFourDay, nil, now)
		if !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

// --- Capability Tests ---

func TestCapabilityValidate(t *testing.T) {
	if err := SpecificWebinarGrant("").Validate(); err == nil {
		t.Error("webinar capability without id must be invalid")
	}
	if err := DripContent(DripSlots + 1).Validate(); err == nil {
		t.Error("drip capability beyond last slot must be invalid")
	}
	if err := SixMonthOnly().Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
