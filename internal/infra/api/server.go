package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/kkk1998sss/webinar-sub002/internal/domain/model"
	"github.com/kkk1998sss/webinar-sub002/internal/usecase"
)

// PaymentService is the slice of the payment use case the HTTP layer calls.
type PaymentService interface {
	CreateOrder(ctx context.Context, in usecase.CreateOrderInput) (*model.Order, string, error)
	VerifyCheckout(ctx context.Context, userID string, in usecase.VerifyInput) (*usecase.CaptureResult, error)
	HandleWebhook(ctx context.Context, rawBody []byte, signature, eventID string) (*usecase.WebhookOutcome, error)
}

// EntitlementService answers access questions for the signed-in user.
type EntitlementService interface {
	Evaluate(ctx context.Context, userID string, c model.Capability) (model.AccessDecision, error)
	Summary(ctx context.Context, userID string) (*usecase.EntitlementSummary, error)
}

// OrderLimiter caps how many gateway orders one user may open per window.
type OrderLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// HealthChecker reports whether a dependency is reachable.
type HealthChecker func(ctx context.Context) error

type Options struct {
	RequestTimeout  time.Duration
	CORSOrigins     []string
	WebhookRPS      float64
	WebhookBurst    int
	OrdersPerWindow int
	OrderWindow     time.Duration
	Currency        string
	MaxWebhookBytes int64
}

type Server struct {
	payments     PaymentService
	entitlements EntitlementService
	auth         *AuthManager
	limiter      OrderLimiter
	health       map[string]HealthChecker
	opts         Options
	log          *zerolog.Logger
	now          func() time.Time
}

func NewServer(
	payments PaymentService,
	entitlements EntitlementService,
	auth *AuthManager,
	limiter OrderLimiter,
	opts Options,
	logger *zerolog.Logger,
) *Server {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 10 * time.Second
	}
	if opts.MaxWebhookBytes <= 0 {
		opts.MaxWebhookBytes = 1 << 20
	}
	if opts.Currency == "" {
		opts.Currency = "INR"
	}
	l := logger.With().Str("component", "HTTPServer").Logger()
	return &Server{
		payments:     payments,
		entitlements: entitlements,
		auth:         auth,
		limiter:      limiter,
		health:       map[string]HealthChecker{},
		opts:         opts,
		log:          &l,
		now:          time.Now,
	}
}

func (s *Server) SetClock(now func() time.Time) { s.now = now }

// AddHealthCheck registers a named dependency probe for /health.
func (s *Server) AddHealthCheck(name string, fn HealthChecker) { s.health[name] = fn }

// Router builds the public router. Admin routes are mounted by the caller.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(TraceID(), RequestLog(s.log), Recover(s.log), CORS(s.opts.CORSOrigins))

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	var throttle *rate.Limiter
	if s.opts.WebhookRPS > 0 {
		burst := s.opts.WebhookBurst
		if burst <= 0 {
			burst = int(s.opts.WebhookRPS) + 1
		}
		throttle = rate.NewLimiter(rate.Limit(s.opts.WebhookRPS), burst)
	}
	// Server-to-server: signed by the gateway, no session.
	r.With(Throttle(throttle), Timeout(s.opts.RequestTimeout)).
		Post("/payments/webhook", s.handleWebhook)

	r.Group(func(r chi.Router) {
		r.Use(Timeout(s.opts.RequestTimeout), s.auth.RequireSession)
		r.Post("/payments/orders", s.handleCreateOrder)
		r.Post("/payments/verify", s.handleVerify)
		r.Get("/entitlements/me", s.handleMyEntitlements)
		r.Get("/entitlements/access", s.handleAccess)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := map[string]string{}
	for name, fn := range s.health {
		if err := fn(ctx); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}
	writeJSON(w, status, map[string]any{"ok": status == http.StatusOK, "checks": checks})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"success": false, "error": msg})
}
