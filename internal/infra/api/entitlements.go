package api

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kkk1998sss/webinar-sub002/internal/domain"
	"github.com/kkk1998sss/webinar-sub002/internal/domain/model"
	"github.com/kkk1998sss/webinar-sub002/internal/infra/logging"
	"github.com/kkk1998sss/webinar-sub002/internal/usecase"
)

type SubscriptionDTO struct {
	ID              string             `json:"id"`
	PlanType        string             `json:"planType"`
	Source          string             `json:"source"`
	OrderID         *string            `json:"orderId,omitempty"`
	StartDate       time.Time          `json:"startDate"`
	EndDate         time.Time          `json:"endDate"`
	IsActive        bool               `json:"isActive"`
	IsValid         bool               `json:"isValid"`
	DaysRemaining   int                `json:"daysRemaining"`
	UnlockedContent *model.UnlockState `json:"unlockedContent,omitempty"`
}

func ToSubscriptionDTO(s *model.Subscription, now time.Time) SubscriptionDTO {
	days := 0
	if s.IsValidAt(now) {
		days = int(math.Ceil(s.EndDate.Sub(now).Hours() / 24))
	}
	return SubscriptionDTO{
		ID:              s.ID,
		PlanType:        string(s.PlanType),
		Source:          string(s.Source),
		OrderID:         s.OrderID,
		StartDate:       s.StartDate,
		EndDate:         s.EndDate,
		IsActive:        s.IsActive,
		IsValid:         s.IsValidAt(now),
		DaysRemaining:   days,
		UnlockedContent: s.UnlockedContent,
	}
}

type GrantDTO struct {
	WebinarID string    `json:"webinarId"`
	Source    string    `json:"source"`
	OrderID   *string   `json:"orderId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func ToGrantDTO(g *model.WebinarGrant) GrantDTO {
	return GrantDTO{WebinarID: g.WebinarID, Source: string(g.Source), OrderID: g.OrderID, CreatedAt: g.CreatedAt}
}

// SummaryResponse is the formatted view of everything a user holds. The
// admin API reuses it.
type SummaryResponse struct {
	UserID        string            `json:"userId"`
	AccountActive bool              `json:"accountActive"`
	Current       *SubscriptionDTO  `json:"current,omitempty"`
	Subscriptions []SubscriptionDTO `json:"subscriptions"`
	WebinarGrants []GrantDTO        `json:"webinarGrants"`
}

func NewSummaryResponse(sum *usecase.EntitlementSummary, now time.Time) SummaryResponse {
	out := SummaryResponse{
		UserID:        sum.User.ID,
		AccountActive: sum.User.IsActive,
		Subscriptions: make([]SubscriptionDTO, 0, len(sum.Subscriptions)),
		WebinarGrants: make([]GrantDTO, 0, len(sum.Grants)),
	}
	for _, s := range sum.Subscriptions {
		out.Subscriptions = append(out.Subscriptions, ToSubscriptionDTO(s, now))
	}
	for _, g := range sum.Grants {
		out.WebinarGrants = append(out.WebinarGrants, ToGrantDTO(g))
	}
	if sum.Current != nil {
		cur := ToSubscriptionDTO(sum.Current, now)
		out.Current = &cur
	}
	return out
}

func (s *Server) handleMyEntitlements(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sum, err := s.entitlements.Summary(ctx, logging.UserIDFrom(ctx))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		l := logging.With(ctx, s.log)
		l.Error().Err(err).Msg("entitlement summary failed")
		writeError(w, http.StatusServiceUnavailable, "entitlements unavailable")
		return
	}
	writeJSON(w, http.StatusOK, NewSummaryResponse(sum, s.now()))
}

// ParseCapability reads ?capability=any|six_month|webinar|drip&webinarId=&day=.
func ParseCapability(kind, webinarID, day string) (model.Capability, error) {
	switch model.CapabilityKind(strings.ToLower(strings.TrimSpace(kind))) {
	case "", model.CapAnyActiveSubscription:
		return model.AnyActiveSubscription(), nil
	case model.CapSixMonthOnly:
		return model.SixMonthOnly(), nil
	case model.CapWebinarGrant:
		c := model.SpecificWebinarGrant(webinarID)
		return c, c.Validate()
	case model.CapDripContent:
		k, err := strconv.Atoi(day)
		if err != nil {
			return model.Capability{}, errors.New("day must be a number")
		}
		c := model.DripContent(k)
		return c, c.Validate()
	}
	return model.Capability{}, errors.New("unknown capability")
}

func (s *Server) handleAccess(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	c, err := ParseCapability(q.Get("capability"), q.Get("webinarId"), q.Get("day"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	d, err := s.entitlements.Evaluate(ctx, logging.UserIDFrom(ctx), c)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) {
			writeError(w, http.StatusBadRequest, "invalid capability")
			return
		}
		// fail closed
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"allowed": false, "reason": model.ReasonStorageUnavailable})
		return
	}

	body := map[string]any{"allowed": d.Allowed, "reason": d.Reason}
	if d.Subscription != nil {
		body["subscription"] = ToSubscriptionDTO(d.Subscription, s.now())
	}
	writeJSON(w, http.StatusOK, body)
}
