package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/kkk1998sss/webinar-sub002/internal/domain"
	"github.com/kkk1998sss/webinar-sub002/internal/domain/model"
	"github.com/kkk1998sss/webinar-sub002/internal/infra/logging"
	red "github.com/kkk1998sss/webinar-sub002/internal/infra/redis"
	"github.com/kkk1998sss/webinar-sub002/internal/usecase"
)

const (
	HeaderWebhookSignature = "X-Razorpay-Signature"
	HeaderWebhookEventID   = "X-Razorpay-Event-Id"
)

type createOrderRequest struct {
	PlanType  string  `json:"planType"`
	Amount    int64   `json:"amount"`
	Currency  string  `json:"currency"`
	WebinarID *string `json:"webinarId,omitempty"`
}

type OrderDTO struct {
	ID        string     `json:"id"`
	Amount    int64      `json:"amount"`
	Currency  string     `json:"currency"`
	Receipt   string     `json:"receipt"`
	PlanType  string     `json:"planType"`
	WebinarID *string    `json:"webinarId,omitempty"`
	Status    string     `json:"status"`
	CreatedAt time.Time  `json:"createdAt"`
	Captured  *time.Time `json:"capturedAt,omitempty"`
}

func ToOrderDTO(o *model.Order) OrderDTO {
	return OrderDTO{
		ID:        o.GatewayOrderID,
		Amount:    o.Amount,
		Currency:  o.Currency,
		Receipt:   o.Receipt,
		PlanType:  string(o.PlanType),
		WebinarID: o.WebinarID,
		Status:    string(o.Status),
		CreatedAt: o.CreatedAt,
		Captured:  o.CapturedAt,
	}
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := logging.UserIDFrom(ctx)
	l := logging.With(ctx, s.log)

	var req createOrderRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 64<<10)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	plan, err := model.ParsePlanType(req.PlanType)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid plan type")
		return
	}

	if s.limiter != nil && s.opts.OrdersPerWindow > 0 {
		ok, err := s.limiter.Allow(ctx, red.OrderCreateKey(userID), s.opts.OrdersPerWindow, s.opts.OrderWindow)
		switch {
		case err != nil:
			// redis outage must not block purchases
			l.Warn().Err(err).Msg("order rate limiter unavailable")
		case !ok:
			w.Header().Set("Retry-After", retryAfter(s.opts.OrderWindow))
			writeError(w, http.StatusTooManyRequests, "too many orders, try again later")
			return
		}
	}

	currency := req.Currency
	if currency == "" {
		currency = s.opts.Currency
	}
	order, key, err := s.payments.CreateOrder(ctx, usecase.CreateOrderInput{
		UserID:    userID,
		Amount:    req.Amount,
		Currency:  currency,
		PlanType:  plan,
		WebinarID: req.WebinarID,
	})
	if err != nil {
		code, msg := orderErrorStatus(err)
		if code >= 500 {
			l.Error().Err(err).Str("plan_type", string(plan)).Msg("create order failed")
		}
		writeError(w, code, msg)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"gatewayKey": key,
		"order":      ToOrderDTO(order),
	})
}

// retryAfter renders the limiter window in whole seconds, rounded up.
func retryAfter(window time.Duration) string {
	secs := int64((window + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return strconv.FormatInt(secs, 10)
}

func orderErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidPlanType):
		return http.StatusBadRequest, "invalid plan type"
	case errors.Is(err, domain.ErrAmountMismatch):
		return http.StatusBadRequest, "amount does not match the plan price"
	case errors.Is(err, domain.ErrWebinarNotFound):
		return http.StatusNotFound, "webinar not found"
	case errors.Is(err, domain.ErrUserNotFound):
		return http.StatusNotFound, "user not found"
	case errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest, "invalid order request"
	case errors.Is(err, domain.ErrGatewayUnavailable):
		return http.StatusBadGateway, "payment provider unavailable"
	}
	return http.StatusInternalServerError, "internal error"
}

type verifyRequest struct {
	OrderID   string  `json:"gatewayOrderId"`
	PaymentID string  `json:"gatewayPaymentId"`
	Signature string  `json:"signature"`
	PlanType  string  `json:"planType"`
	WebinarID *string `json:"webinarId,omitempty"`

	// Field names posted by the Razorpay checkout handler as-is.
	RzpOrderID   string `json:"razorpay_order_id"`
	RzpPaymentID string `json:"razorpay_payment_id"`
	RzpSignature string `json:"razorpay_signature"`
}

func (r *verifyRequest) normalize() {
	if r.OrderID == "" {
		r.OrderID = r.RzpOrderID
	}
	if r.PaymentID == "" {
		r.PaymentID = r.RzpPaymentID
	}
	if r.Signature == "" {
		r.Signature = r.RzpSignature
	}
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := logging.UserIDFrom(ctx)

	var req verifyRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 64<<10)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.normalize()
	ctx = logging.WithOrderID(ctx, req.OrderID)
	l := logging.With(ctx, s.log)

	res, err := s.payments.VerifyCheckout(ctx, userID, usecase.VerifyInput{
		GatewayOrderID:   req.OrderID,
		GatewayPaymentID: req.PaymentID,
		Signature:        req.Signature,
		PlanType:         req.PlanType,
		WebinarID:        req.WebinarID,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrVerificationFailed):
			writeError(w, http.StatusBadRequest, "invalid payment signature")
		case errors.Is(err, domain.ErrInvalidArgument):
			writeError(w, http.StatusBadRequest, "order id, payment id and signature are required")
		case errors.Is(err, domain.ErrForbidden):
			writeError(w, http.StatusForbidden, "order belongs to another account")
		case errors.Is(err, domain.ErrUnknownOrder):
			writeError(w, http.StatusNotFound, "order not found")
		case errors.Is(err, domain.ErrInvalidTransition):
			writeError(w, http.StatusConflict, "payment for this order has failed")
		default:
			// The payment is authentic; the webhook or reconciler will finish it.
			l.Error().Err(err).Msg("checkout verified but entitlement not resolved")
			writeJSON(w, http.StatusAccepted, map[string]any{
				"success": false,
				"message": "payment is being processed",
			})
		}
		return
	}

	body := map[string]any{
		"success":   true,
		"duplicate": res.Duplicate,
		"order":     ToOrderDTO(res.Order),
	}
	if res.Resolution != nil {
		if res.Resolution.Subscription != nil {
			body["subscription"] = ToSubscriptionDTO(res.Resolution.Subscription, s.now())
		}
		if res.Resolution.Grant != nil {
			body["webinarGrant"] = ToGrantDTO(res.Resolution.Grant)
		}
	}
	writeJSON(w, http.StatusOK, body)
}

// handleWebhook must see the untouched body: the signature covers raw bytes.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := logging.With(ctx, s.log)

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.opts.MaxWebhookBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "payload too large")
		return
	}

	out, err := s.payments.HandleWebhook(ctx, raw, r.Header.Get(HeaderWebhookSignature), r.Header.Get(HeaderWebhookEventID))
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrVerificationFailed):
			writeError(w, http.StatusUnauthorized, "invalid signature")
		case errors.Is(err, domain.ErrMalformedEvent):
			writeError(w, http.StatusBadRequest, "malformed event")
		default:
			l.Error().Err(err).Msg("webhook processing failed")
			writeError(w, http.StatusInternalServerError, "temporary failure")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"received":  true,
		"duplicate": out.Duplicate,
		"ignored":   out.Ignored,
	})
}
