// File: internal/usecase/payment_uc.go
package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"github.com/kkk1998sss/webinar-sub002/internal/domain"
	"github.com/kkk1998sss/webinar-sub002/internal/domain/model"
	"github.com/kkk1998sss/webinar-sub002/internal/domain/ports/adapter"
	"github.com/kkk1998sss/webinar-sub002/internal/domain/ports/repository"
	"github.com/kkk1998sss/webinar-sub002/internal/infra/logging"
	"github.com/kkk1998sss/webinar-sub002/internal/infra/metrics"
)

// Compile-time check
var _ PaymentUseCase = (*paymentUC)(nil)

const (
	PathWebhook   = "webhook"
	PathVerify    = "verify"
	PathReconcile = "reconcile"

	captureAttempts = 3
)

// Gateway webhook event names.
const (
	EventPaymentCaptured = "payment.captured"
	EventOrderPaid       = "order.paid"
	EventPaymentFailed   = "payment.failed"
)

type PaymentUseCase interface {
	// CreateOrder registers a purchase intent and returns it with the
	// public key the checkout widget needs.
	CreateOrder(ctx context.Context, in CreateOrderInput) (*model.Order, string, error)
	// VerifyCheckout handles the client-side redirect after checkout.
	VerifyCheckout(ctx context.Context, userID string, in VerifyInput) (*CaptureResult, error)
	// HandleWebhook processes a raw gateway notification.
	HandleWebhook(ctx context.Context, rawBody []byte, signature, eventID string) (*WebhookOutcome, error)
	// ReconcileOrder asks the gateway about a pending order and captures it
	// when a captured payment exists. Returns true when the order was captured.
	ReconcileOrder(ctx context.Context, gatewayOrderID string) (bool, error)
}

// VerifyInput is the checkout callback payload. PlanType and WebinarID are
// client claims; entitlements always come from the stored order.
type VerifyInput struct {
	GatewayOrderID   string
	GatewayPaymentID string
	Signature        string
	PlanType         string
	WebinarID        *string
}

// CaptureResult is the outcome of a capture attempt on any intake path.
type CaptureResult struct {
	Order      *model.Order
	Resolution *Resolution
	// Duplicate is true when the order had already been captured.
	Duplicate bool
}

// WebhookOutcome reports what a verified webhook did.
type WebhookOutcome struct {
	EventID   string
	EventType string
	Duplicate bool
	Ignored   bool
	Capture   *CaptureResult
	// BusinessErr is recorded against the event and not retried.
	BusinessErr error
}

type paymentUC struct {
	ledger   *OrderLedger
	resolver *EntitlementResolver
	events   repository.WebhookEventRepository
	verifier adapter.SignatureVerifier
	gateway  adapter.PaymentGateway
	tm       repository.TransactionManager
	log      *zerolog.Logger
	now      func() time.Time
}

func NewPaymentUseCase(
	ledger *OrderLedger,
	resolver *EntitlementResolver,
	events repository.WebhookEventRepository,
	verifier adapter.SignatureVerifier,
	gateway adapter.PaymentGateway,
	tm repository.TransactionManager,
	logger *zerolog.Logger,
) *paymentUC {
	return &paymentUC{
		ledger:   ledger,
		resolver: resolver,
		events:   events,
		verifier: verifier,
		gateway:  gateway,
		tm:       tm,
		log:      logger,
		now:      time.Now,
	}
}

func (u *paymentUC) CreateOrder(ctx context.Context, in CreateOrderInput) (*model.Order, string, error) {
	o, err := u.ledger.CreateOrder(ctx, in)
	if err != nil {
		return nil, "", err
	}
	return o, u.gateway.PublicKey(), nil
}

func (u *paymentUC) VerifyCheckout(ctx context.Context, userID string, in VerifyInput) (*CaptureResult, error) {
	defer logging.TraceDuration(u.log, "PaymentUC.VerifyCheckout")()
	start := time.Now()
	defer func() { metrics.PaymentIntakeDuration.WithLabelValues(PathVerify).Observe(time.Since(start).Seconds()) }()

	if in.GatewayOrderID == "" || in.GatewayPaymentID == "" || in.Signature == "" {
		metrics.IncIntake(PathVerify, "rejected", "missing_fields")
		return nil, fmt.Errorf("%w: order id, payment id and signature are required", domain.ErrInvalidArgument)
	}
	if !u.verifier.VerifyCheckout(in.GatewayOrderID, in.GatewayPaymentID, in.Signature) {
		metrics.IncIntake(PathVerify, "rejected", "signature")
		u.log.Warn().Str("order_id", in.GatewayOrderID).Str("user_id", userID).Msg("checkout signature rejected")
		return nil, domain.ErrVerificationFailed
	}

	order, err := u.ledger.Get(ctx, in.GatewayOrderID)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownOrder) {
			metrics.IncAlert("unknown_order")
			logging.Alert(u.log, "unknown_order").Str("order_id", in.GatewayOrderID).Str("path", PathVerify).Msg("verified checkout for unknown order")
		}
		metrics.IncIntake(PathVerify, "error", "lookup")
		return nil, err
	}
	if order.UserID != userID {
		metrics.IncIntake(PathVerify, "rejected", "forbidden")
		u.log.Warn().Str("order_id", order.GatewayOrderID).Str("user_id", userID).Msg("checkout verify for another user's order")
		return nil, domain.ErrForbidden
	}
	if in.PlanType != "" {
		if claimed, perr := model.ParsePlanType(in.PlanType); perr != nil || claimed != order.PlanType {
			u.log.Warn().
				Str("order_id", order.GatewayOrderID).
				Str("claimed_plan", in.PlanType).
				Str("order_plan", string(order.PlanType)).
				Msg("client plan claim ignored")
		}
	}

	res, err := u.capture(ctx, PathVerify, in.GatewayOrderID, in.GatewayPaymentID, in.Signature)
	if err != nil {
		u.alertIfBusiness(err, PathVerify, in.GatewayOrderID)
		metrics.IncIntake(PathVerify, "error", reasonOf(err))
		return nil, err
	}
	metrics.IncIntake(PathVerify, resultOf(res), "")
	return res, nil
}

func (u *paymentUC) HandleWebhook(ctx context.Context, rawBody []byte, signature, eventID string) (*WebhookOutcome, error) {
	defer logging.TraceDuration(u.log, "PaymentUC.HandleWebhook")()
	start := time.Now()
	defer func() { metrics.PaymentIntakeDuration.WithLabelValues(PathWebhook).Observe(time.Since(start).Seconds()) }()

	if !u.verifier.VerifyWebhook(rawBody, signature) {
		metrics.IncIntake(PathWebhook, "rejected", "signature")
		u.log.Warn().Int("body_len", len(rawBody)).Msg("webhook signature rejected")
		return nil, domain.ErrVerificationFailed
	}

	ev, parseErr := parseWebhook(rawBody)
	if parseErr != nil {
		// Authentic but unreadable: store it for an operator, never bounce it.
		ev = &webhookEvent{}
	}
	if eventID == "" {
		// Without a provider id, identical retries still collapse onto one row.
		sum := sha256.Sum256(rawBody)
		eventID = "sha256:" + hex.EncodeToString(sum[:])
	}
	out := &WebhookOutcome{EventID: eventID, EventType: ev.Event}

	record := &model.WebhookEvent{
		ID:             uuid.NewString(),
		Provider:       u.gateway.Name(),
		EventID:        eventID,
		EventType:      ev.Event,
		GatewayOrderID: ev.orderID(),
		Payload:        rawBody,
		CreatedAt:      u.now(),
	}
	if err := u.events.Insert(ctx, nil, record); err != nil {
		if !errors.Is(err, domain.ErrAlreadyExists) {
			metrics.IncIntake(PathWebhook, "error", "storage")
			return nil, err
		}
		prev, ferr := u.events.FindByEventID(ctx, nil, record.Provider, eventID)
		if ferr != nil {
			metrics.IncIntake(PathWebhook, "error", "storage")
			return nil, ferr
		}
		if prev.ProcessedAt != nil {
			out.Duplicate = true
			metrics.IncIntake(PathWebhook, "duplicate", "event")
			u.log.Info().Str("event_id", eventID).Str("event", ev.Event).Msg("webhook event already processed")
			return out, nil
		}
		// Seen but never finished: process again, downstream is idempotent.
		record = prev
	}

	procErr := parseErr
	if procErr == nil {
		procErr = u.dispatch(ctx, ev, eventID, out)
	}
	if procErr != nil && !isBusinessError(procErr) {
		// Transient: leave the event unprocessed so the gateway retries.
		metrics.IncIntake(PathWebhook, "error", reasonOf(procErr))
		u.log.Error().Err(procErr).Str("event_id", eventID).Str("event", ev.Event).Msg("webhook processing failed; awaiting retry")
		return nil, procErr
	}

	errText := ""
	if procErr != nil {
		out.BusinessErr = procErr
		errText = procErr.Error()
		u.alertIfBusiness(procErr, PathWebhook, record.GatewayOrderID)
	}
	if err := u.events.MarkProcessed(ctx, nil, record.ID, errText, u.now()); err != nil {
		u.log.Error().Err(err).Str("event_id", eventID).Msg("failed to mark webhook event processed")
	}

	switch {
	case out.BusinessErr != nil:
		metrics.IncIntake(PathWebhook, "error", reasonOf(out.BusinessErr))
	case out.Ignored:
		metrics.IncIntake(PathWebhook, "ignored", ev.Event)
	case out.Capture != nil:
		metrics.IncIntake(PathWebhook, resultOf(out.Capture), "")
	default:
		metrics.IncIntake(PathWebhook, "ok", ev.Event)
	}
	return out, nil
}

func (u *paymentUC) dispatch(ctx context.Context, ev *webhookEvent, eventID string, out *WebhookOutcome) error {
	var err error
	switch ev.Event {
	case EventPaymentCaptured, EventOrderPaid:
		orderID, paymentID := ev.orderID(), ev.Payload.Payment.Entity.ID
		if orderID == "" || paymentID == "" {
			err = fmt.Errorf("%w: %s without order or payment id", domain.ErrMalformedEvent, ev.Event)
			break
		}
		out.Capture, err = u.capture(ctx, PathWebhook, orderID, paymentID, "event:"+eventID)
	case EventPaymentFailed:
		err = u.fail(ctx, ev.orderID(), ev.Payload.Payment.Entity.ID)
	default:
		out.Ignored = true
	}
	return err
}

func (u *paymentUC) ReconcileOrder(ctx context.Context, gatewayOrderID string) (bool, error) {
	payments, err := u.gateway.ListOrderPayments(ctx, gatewayOrderID)
	if err != nil {
		metrics.IncGatewayError("list_payments")
		return false, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	for _, p := range payments {
		if p.Status != "captured" {
			continue
		}
		res, err := u.capture(ctx, PathReconcile, gatewayOrderID, p.ID, "reconcile:"+p.ID)
		if err != nil {
			u.alertIfBusiness(err, PathReconcile, gatewayOrderID)
			metrics.IncIntake(PathReconcile, "error", reasonOf(err))
			return false, err
		}
		metrics.IncIntake(PathReconcile, resultOf(res), "")
		return !res.Duplicate, nil
	}
	return false, nil
}

// capture runs MarkCaptured and Resolve in one transaction so an order is
// never captured without its entitlement. Only the call that moved the
// order out of pending invokes the resolver.
func (u *paymentUC) capture(ctx context.Context, path, gatewayOrderID, gatewayPaymentID, signature string) (*CaptureResult, error) {
	var res *CaptureResult
	var err error
	for attempt := 1; attempt <= captureAttempts; attempt++ {
		res = &CaptureResult{}
		err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
			order, captured, err := u.ledger.MarkCaptured(ctx, tx, gatewayOrderID, gatewayPaymentID, signature)
			if err != nil {
				return err
			}
			res.Order = order
			if !captured {
				res.Duplicate = true
				return nil
			}
			r, err := u.resolver.Resolve(ctx, tx, order)
			if err != nil {
				return err
			}
			res.Resolution = r
			return nil
		})
		if !errors.Is(err, domain.ErrTransactionConflict) {
			break
		}
		metrics.IncTxRetry("capture")
		u.log.Warn().Int("attempt", attempt).Str("order_id", gatewayOrderID).Msg("capture conflicted; retrying")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt) * 20 * time.Millisecond):
		}
	}
	if err != nil {
		return nil, err
	}

	if res.Duplicate {
		u.log.Info().Str("order_id", gatewayOrderID).Str("path", path).Msg("order already captured")
		return res, nil
	}
	o := res.Order
	metrics.IncOrder(string(model.OrderStatusCaptured), string(o.PlanType))
	metrics.AddPaymentRevenue(o.Currency, o.Amount)
	u.resolver.Record(res.Resolution)
	u.log.Info().
		Str("order_id", o.GatewayOrderID).
		Str("payment_id", gatewayPaymentID).
		Str("user_id", o.UserID).
		Str("plan_type", string(o.PlanType)).
		Str("path", path).
		Msg("order captured and entitlement resolved")
	return res, nil
}

func (u *paymentUC) fail(ctx context.Context, gatewayOrderID, gatewayPaymentID string) error {
	if gatewayOrderID == "" {
		return fmt.Errorf("%w: payment.failed without order id", domain.ErrMalformedEvent)
	}
	return u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		o, err := u.ledger.MarkFailed(ctx, tx, gatewayOrderID, gatewayPaymentID)
		if err != nil {
			return err
		}
		metrics.IncOrder(string(model.OrderStatusFailed), string(o.PlanType))
		u.log.Info().Str("order_id", gatewayOrderID).Str("payment_id", gatewayPaymentID).Msg("order marked failed")
		return nil
	})
}

func (u *paymentUC) alertIfBusiness(err error, path, gatewayOrderID string) {
	if !isBusinessError(err) {
		return
	}
	kind := reasonOf(err)
	metrics.IncAlert(kind)
	logging.Alert(u.log, kind).Err(err).Str("order_id", gatewayOrderID).Str("path", path).Msg("payment needs operator attention")
}

// isBusinessError reports errors a retry cannot fix.
func isBusinessError(err error) bool {
	for _, target := range []error{
		domain.ErrUnknownOrder,
		domain.ErrDataIntegrity,
		domain.ErrInvalidTransition,
		domain.ErrInvalidPlanType,
		domain.ErrMalformedEvent,
		domain.ErrInvalidArgument,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func reasonOf(err error) string {
	switch {
	case errors.Is(err, domain.ErrUnknownOrder):
		return "unknown_order"
	case errors.Is(err, domain.ErrDataIntegrity):
		return "data_integrity"
	case errors.Is(err, domain.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, domain.ErrInvalidPlanType):
		return "invalid_plan"
	case errors.Is(err, domain.ErrMalformedEvent), errors.Is(err, domain.ErrInvalidArgument):
		return "malformed"
	case errors.Is(err, domain.ErrTransactionConflict):
		return "conflict"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "timeout"
	}
	return "internal"
}

func resultOf(res *CaptureResult) string {
	if res.Duplicate || (res.Resolution != nil && res.Resolution.Duplicate) {
		return "duplicate"
	}
	return "captured"
}

// --- webhook payload ---

type webhookEvent struct {
	Event     string `json:"event"`
	CreatedAt int64  `json:"created_at"`
	Payload   struct {
		Payment struct {
			Entity struct {
				ID       string `json:"id"`
				OrderID  string `json:"order_id"`
				Status   string `json:"status"`
				Amount   int64  `json:"amount"`
				Currency string `json:"currency"`
			} `json:"entity"`
		} `json:"payment"`
		Order struct {
			Entity struct {
				ID     string `json:"id"`
				Status string `json:"status"`
			} `json:"entity"`
		} `json:"order"`
	} `json:"payload"`
}

func (e *webhookEvent) orderID() string {
	if id := e.Payload.Payment.Entity.OrderID; id != "" {
		return id
	}
	return e.Payload.Order.Entity.ID
}

func parseWebhook(raw []byte) (*webhookEvent, error) {
	var ev webhookEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedEvent, err)
	}
	if ev.Event == "" {
		return nil, fmt.Errorf("%w: missing event name", domain.ErrMalformedEvent)
	}
	return &ev, nil
}
