// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"

	"github.com/kkk1998sss/webinar-sub002/internal/config"
	"github.com/kkk1998sss/webinar-sub002/internal/domain/ports/adapter"
	"github.com/kkk1998sss/webinar-sub002/internal/domain/ports/repository"
	payAdapters "github.com/kkk1998sss/webinar-sub002/internal/infra/adapters/payment"
	"github.com/kkk1998sss/webinar-sub002/internal/infra/api"
	pg "github.com/kkk1998sss/webinar-sub002/internal/infra/db/postgres"
	httpserver "github.com/kkk1998sss/webinar-sub002/internal/infra/http"
	"github.com/kkk1998sss/webinar-sub002/internal/infra/logging"
	"github.com/kkk1998sss/webinar-sub002/internal/infra/metrics"
	red "github.com/kkk1998sss/webinar-sub002/internal/infra/redis"
	"github.com/kkk1998sss/webinar-sub002/internal/infra/sched"
	"github.com/kkk1998sss/webinar-sub002/internal/infra/scheduler"
	"github.com/kkk1998sss/webinar-sub002/internal/infra/security"
	"github.com/kkk1998sss/webinar-sub002/internal/infra/web"
	"github.com/kkk1998sss/webinar-sub002/internal/infra/worker"
	"github.com/kkk1998sss/webinar-sub002/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, noop gateway allowed)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] Enabled")
	}
	metrics.MustRegister()
	metrics.SetBuildInfo()

	// ---- Postgres ----
	if cfg.Database.Migrate {
		if err := pg.Migrate(cfg.Database.URL); err != nil {
			logger.Fatal().Err(err).Msg("migrations failed")
		}
		logger.Info().Msg("migrations applied")
	}
	pool, err := pg.NewPgxPool(ctx, cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	// ---- Redis (optional) ----
	var (
		redisClient *red.Client
		limiter     api.OrderLimiter
		locker      red.Locker
	)
	if cfg.Redis.URL != "" {
		redisClient, err = red.NewClient(ctx, cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis")
		}
		defer redisClient.Close()
		limiter = red.NewRateLimiter(redisClient)
		locker = red.NewLocker(redisClient)
	} else {
		logger.Warn().Msg("redis not configured: order rate limit, catalog cache and reconcile lock are disabled")
	}

	// ---- Repositories ----
	userRepo := pg.NewPostgresUserRepo(pool)
	orderRepo := pg.NewOrderRepo(pool)
	subRepo := pg.NewSubscriptionRepo(pool)
	grantRepo := pg.NewWebinarGrantRepo(pool)
	eventRepo := pg.NewWebhookEventRepo(pool)
	tm := pg.NewTxManager(pool)

	var catalog repository.WebinarCatalog = userRepo
	if redisClient != nil {
		catalog = pg.NewWebinarCatalogCache(userRepo, redisClient, cfg.Redis.CacheTTL, logger)
	}

	// ---- Payment gateway ----
	gateway, err := newGateway(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("payment gateway")
	}
	verifier := security.NewHMACVerifier(cfg.Payment.WebhookSecret, cfg.Payment.KeySecret)

	// ---- Use cases ----
	prices := usecase.PriceBook{
		Currency: cfg.Payment.Currency,
		FourDay:  cfg.Payment.FourDayPrice,
		SixMonth: cfg.Payment.SixMonthPrice,
	}
	ledger := usecase.NewOrderLedger(orderRepo, userRepo, catalog, gateway, prices, logger)
	resolver := usecase.NewEntitlementResolver(subRepo, grantRepo, userRepo, catalog, tm, logger)
	gate := usecase.NewAccessGate(subRepo, grantRepo, userRepo, logger)
	paymentUC := usecase.NewPaymentUseCase(ledger, resolver, eventRepo, verifier, gateway, tm, logger)

	// ---- HTTP ----
	auth := api.NewAuthManager(cfg.Session.JWTSecret, cfg.Session.CookieName, cfg.Session.TTL)
	apiServer := api.NewServer(paymentUC, gate, auth, limiter, api.Options{
		RequestTimeout:  cfg.HTTP.RequestTimeout,
		CORSOrigins:     cfg.HTTP.CORSOrigins,
		WebhookRPS:      cfg.HTTP.WebhookRPS,
		WebhookBurst:    cfg.HTTP.WebhookBurst,
		OrdersPerWindow: cfg.RateLimit.OrdersPerWindow,
		OrderWindow:     cfg.RateLimit.Window,
		Currency:        cfg.Payment.Currency,
	}, logger)
	apiServer.AddHealthCheck("postgres", pool.Ping)
	if redisClient != nil {
		apiServer.AddHealthCheck("redis", redisClient.Ping)
	}

	router := apiServer.Router()
	if cfg.Admin.APIKey != "" {
		admin := web.NewServer(resolver, gate, ledger, paymentUC, cfg.Admin.APIKey, logger)
		router.Mount("/admin", admin.Routes())
	} else {
		logger.Warn().Msg("admin.api_key not set: admin API disabled")
	}

	srv := httpserver.NewServer(cfg.HTTP.Port, router, logger)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Error().Err(err).Msg("http server error")
			cancel()
		}
	}()

	// ---- Background jobs ----
	reconcilePool := worker.NewPool(cfg.Scheduler.ReconcileWorkers, logger)
	reconcilePool.Start(ctx)

	// locker is nil without redis; the reconciler then runs unguarded
	reconciler := sched.NewPaymentReconciler(ledger, paymentUC, reconcilePool, locker, cfg.Scheduler.StaleAfter, cfg.Scheduler.ReconcileInterval, logger)
	stats := sched.NewStatsWorker(subRepo, poolStats(pool), logger)

	jobs := scheduler.NewScheduler(logger)
	jobs.Every(cfg.Scheduler.ReconcileInterval, 0, reconciler)
	jobs.Every(cfg.Scheduler.StatsInterval, 30*time.Second, stats)
	jobs.Start(ctx)

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigc:
		logger.Info().Msg("shutdown requested")
	case <-ctx.Done():
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 15*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	cancel()
	jobs.Stop()
	reconcilePool.Stop()
	logger.Info().Msg("bye")
}

func newGateway(cfg *config.Config, logger *zerolog.Logger) (adapter.PaymentGateway, error) {
	switch cfg.Payment.Provider {
	case "noop":
		if !cfg.Runtime.Dev {
			logger.Warn().Msg("noop payment gateway in use outside dev mode")
		}
		return payAdapters.NewNoopPaymentGateway(), nil
	case "razorpay":
		return payAdapters.NewRazorpayGateway(cfg.Payment.KeyID, cfg.Payment.KeySecret, cfg.Payment.BaseURL, cfg.Payment.Timeout)
	}
	return nil, fmt.Errorf("unknown payment provider %q", cfg.Payment.Provider)
}

func poolStats(pool *pgxpool.Pool) sched.PoolStats {
	return func() (int32, int32, int32) {
		st := pool.Stat()
		return st.TotalConns(), st.IdleConns(), st.AcquiredConns()
	}
}
