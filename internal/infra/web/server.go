package web

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/kkk1998sss/webinar-sub002/internal/domain/model"
	"github.com/kkk1998sss/webinar-sub002/internal/infra/metrics"
	"github.com/kkk1998sss/webinar-sub002/internal/usecase"
)

// GrantService creates entitlements that did not come from a payment.
type GrantService interface {
	Grant(ctx context.Context, in usecase.GrantInput) (*usecase.Resolution, error)
}

// SummaryService lists what a user holds.
type SummaryService interface {
	Summary(ctx context.Context, userID string) (*usecase.EntitlementSummary, error)
}

// OrderService looks up and repairs orders.
type OrderService interface {
	Get(ctx context.Context, gatewayOrderID string) (*model.Order, error)
}

// Reconciler asks the gateway whether a pending order was paid.
type Reconciler interface {
	ReconcileOrder(ctx context.Context, gatewayOrderID string) (bool, error)
}

// Server is the operator API, protected by a static bearer key.
type Server struct {
	grants     GrantService
	summaries  SummaryService
	orders     OrderService
	reconciler Reconciler
	apiKey     string
	log        *zerolog.Logger
}

func NewServer(
	grants GrantService,
	summaries SummaryService,
	orders OrderService,
	reconciler Reconciler,
	apiKey string,
	logger *zerolog.Logger,
) *Server {
	l := logger.With().Str("component", "AdminAPI").Logger()
	return &Server{
		grants:     grants,
		summaries:  summaries,
		orders:     orders,
		reconciler: reconciler,
		apiKey:     apiKey,
		log:        &l,
	}
}

// Routes returns the admin sub-router; mount it under /admin.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(s.authMiddleware)
	r.Post("/grants", s.instrument("grants", grantCreateHandler(s.grants)))
	r.Get("/users/{id}/entitlements", s.instrument("user_entitlements", userEntitlementsHandler(s.summaries)))
	r.Get("/orders/{gatewayOrderId}", s.instrument("order_get", orderGetHandler(s.orders)))
	r.Post("/orders/{gatewayOrderId}/reconcile", s.instrument("order_reconcile", orderReconcileHandler(s.reconciler)))
	return r
}

// authMiddleware provides simple Bearer token authentication for the admin API.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey == "" {
			s.log.Error().Msg("Admin API key is not configured")
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		tokenParts := strings.Split(authHeader, " ")
		if len(tokenParts) != 2 || strings.ToLower(tokenParts[0]) != "bearer" {
			http.Error(w, "Unauthorized: Malformed token", http.StatusUnauthorized)
			return
		}

		if subtle.ConstantTimeCompare([]byte(tokenParts[1]), []byte(s.apiKey)) != 1 {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (s *Server) instrument(route string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h(rec, r)
		metrics.IncAdminRequest(route, strconv.Itoa(rec.status))
	}
}
