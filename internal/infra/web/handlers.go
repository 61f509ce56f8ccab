package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kkk1998sss/webinar-sub002/internal/domain"
	"github.com/kkk1998sss/webinar-sub002/internal/domain/model"
	"github.com/kkk1998sss/webinar-sub002/internal/infra/api"
	"github.com/kkk1998sss/webinar-sub002/internal/usecase"
)

// A struct to define the expected JSON request body for creating a grant.
type grantCreateRequest struct {
	UserID    string `json:"userId"`
	PlanType  string `json:"planType"`
	Source    string `json:"source"`
	WebinarID string `json:"webinarId"`
	Note      string `json:"note"`
}

// Handler for granting an entitlement without a payment.
func grantCreateHandler(grants GrantService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req grantCreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		plan, err := model.ParsePlanType(req.PlanType)
		if err != nil {
			http.Error(w, "Invalid plan type", http.StatusBadRequest)
			return
		}
		source := model.EntitlementSource(req.Source)
		if source == "" {
			source = model.SourceAdmin
		}

		res, err := grants.Grant(ctx, usecase.GrantInput{
			UserID:    req.UserID,
			PlanType:  plan,
			Source:    source,
			WebinarID: req.WebinarID,
			Note:      req.Note,
		})
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrUserNotFound):
				http.Error(w, "User not found", http.StatusNotFound)
			case errors.Is(err, domain.ErrWebinarNotFound):
				http.Error(w, "Webinar not found", http.StatusNotFound)
			case errors.Is(err, domain.ErrFreeTrialConsumed):
				http.Error(w, "Free trial already used", http.StatusConflict)
			case errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrInvalidPlanType):
				http.Error(w, err.Error(), http.StatusBadRequest)
			default:
				http.Error(w, "Failed to create grant", http.StatusInternalServerError)
			}
			return
		}

		response := struct {
			Subscription *api.SubscriptionDTO `json:"subscription,omitempty"`
			WebinarGrant *api.GrantDTO        `json:"webinarGrant,omitempty"`
			Superseded   int                  `json:"superseded"`
			Duplicate    bool                 `json:"duplicate"`
		}{
			Superseded: res.Superseded,
			Duplicate:  res.Duplicate,
		}
		if res.Subscription != nil {
			sub := api.ToSubscriptionDTO(res.Subscription, time.Now())
			response.Subscription = &sub
		}
		if res.Grant != nil {
			g := api.ToGrantDTO(res.Grant)
			response.WebinarGrant = &g
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(response)
	}
}

func userEntitlementsHandler(summaries SummaryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		id := chi.URLParam(r, "id")
		if id == "" {
			http.Error(w, "User ID is required", http.StatusBadRequest)
			return
		}

		sum, err := summaries.Summary(ctx, id)
		if err != nil {
			if errors.Is(err, domain.ErrUserNotFound) {
				http.NotFound(w, r)
				return
			}
			http.Error(w, "Failed to get user entitlements", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(api.NewSummaryResponse(sum, time.Now()))
	}
}

// adminOrder adds the fields operators need when chasing a payment.
type adminOrder struct {
	api.OrderDTO
	InternalID       string    `json:"internalId"`
	UserID           string    `json:"userId"`
	GatewayPaymentID *string   `json:"gatewayPaymentId,omitempty"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

func orderGetHandler(orders OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		o, err := orders.Get(ctx, chi.URLParam(r, "gatewayOrderId"))
		if err != nil {
			if errors.Is(err, domain.ErrUnknownOrder) {
				http.NotFound(w, r)
				return
			}
			http.Error(w, "Failed to get order", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(adminOrder{
			OrderDTO:         api.ToOrderDTO(o),
			InternalID:       o.ID,
			UserID:           o.UserID,
			GatewayPaymentID: o.GatewayPaymentID,
			UpdatedAt:        o.UpdatedAt,
		})
	}
}

func orderReconcileHandler(rec Reconciler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		captured, err := rec.ReconcileOrder(ctx, chi.URLParam(r, "gatewayOrderId"))
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrUnknownOrder):
				http.NotFound(w, r)
			case errors.Is(err, domain.ErrGatewayUnavailable):
				http.Error(w, "Payment provider unavailable", http.StatusBadGateway)
			default:
				http.Error(w, "Failed to reconcile order", http.StatusInternalServerError)
			}
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]bool{"captured": captured})
	}
}
