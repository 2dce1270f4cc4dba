package main

import (
	"context"
	"net/http"
	"time"

	"github.com/dimpoz/backend/internal/config"
	"github.com/dimpoz/backend/internal/handler"
	appMiddleware "github.com/dimpoz/backend/internal/middleware"
	"github.com/dimpoz/backend/internal/repository"
	"github.com/dimpoz/backend/internal/service"
	"github.com/dimpoz/backend/internal/store"
	"github.com/dimpoz/backend/internal/ws"
	"github.com/dimpoz/backend/pkg/crypto"
	"github.com/dimpoz/backend/pkg/payment"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// app holds the wired services behind the HTTP API.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	store  store.Store

	policy     *service.AdminPolicy
	auth       *service.AuthService
	flow       *service.SettlementService
	subs       *service.SubscriptionService
	wallet     *service.WalletService
	users      *service.UserService
	catalog    *service.CatalogService
	reconciler *service.Reconciler
}

func newApp(cfg *config.Config, logger *zap.Logger, st store.Store, keys *store.KeyGenerator, gateway payment.Gateway) (*app, error) {
	enc, err := crypto.NewEncryptor(cfg.EncryptionKey)
	if err != nil {
		return nil, err
	}

	userRepo := repository.NewUserRepository(st)
	subRepo := repository.NewSubscriptionRepository(st)
	ledgerRepo := repository.NewLedgerRepository(st)
	settlementRepo := repository.NewSettlementRepository(st, enc)
	catalogRepo := repository.NewCatalogRepository(st)

	policy := service.NewAdminPolicy(cfg.AdminEmails, userRepo)
	flow := service.NewSettlementService(gateway, settlementRepo, subRepo, ledgerRepo, keys, policy,
		service.SettlementConfig{
			Brand:        cfg.BrandName,
			PollAttempts: cfg.PollAttempts,
			PollInterval: cfg.PollInterval,
		}, logger)

	return &app{
		cfg:     cfg,
		logger:  logger,
		store:   st,
		policy:  policy,
		auth:    service.NewAuthService(cfg.JWTSecret, userRepo, policy, logger),
		flow:    flow,
		subs:    service.NewSubscriptionService(subRepo, policy, logger),
		wallet:  service.NewWalletService(gateway, ledgerRepo, cfg.BrandName, logger),
		users:   service.NewUserService(userRepo, subRepo, logger),
		catalog: service.NewCatalogService(catalogRepo, subRepo, settlementRepo, logger),
		reconciler: service.NewReconciler(settlementRepo, flow, gateway, service.ReconcilerConfig{
			Interval: cfg.ReconcileInterval,
			Grace:    pollWindow(cfg),
			MaxAge:   cfg.SettlementMaxAge,
		}, logger),
	}, nil
}

// pollWindow is how long an interactive checkout may still be polling a
// settlement: every wait, every status call running to GATEWAY_TIMEOUT,
// and one extra interval of slack.
func pollWindow(cfg *config.Config) time.Duration {
	attempts := time.Duration(cfg.PollAttempts)
	return (attempts+1)*cfg.PollInterval + attempts*cfg.GatewayTimeout
}

// Router builds the HTTP API. ctx bounds the background rate limiter cleanup.
func (a *app) Router(ctx context.Context) http.Handler {
	authHandler := handler.NewAuthHandler(a.auth)
	healthHandler := handler.NewHealthHandler(a.store, a.cfg.StoreBackend, a.cfg.GatewayMode)
	plansHandler := handler.NewPlansHandler()
	subHandler := handler.NewSubscriptionHandler(a.flow, a.subs)
	catalogHandler := handler.NewCatalogHandler(a.catalog)
	adminHandler := handler.NewAdminHandler(a.catalog, a.users, a.wallet, a.flow, a.reconciler)
	watchHandler := ws.NewWatchHandler(a.store, a.logger)

	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(appMiddleware.Recovery(a.logger))
	r.Use(appMiddleware.Logger(a.logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   a.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Global rate limiter (20 req/sec per IP, burst of 40)
	globalRL := appMiddleware.NewRateLimiter(ctx, 20, 40, a.logger)
	r.Use(globalRL.Middleware())

	// Public routes
	r.Get("/health", healthHandler.Check)
	r.Get("/api/plans", plansHandler.List)
	r.Get("/api/plans/{id}", plansHandler.Get)
	r.Get("/api/categories", catalogHandler.Categories)
	r.Get("/api/catalog/{kind}", catalogHandler.List)
	r.Get("/api/catalog/{kind}/{id}", catalogHandler.Get)
	r.Get("/api/carousel", catalogHandler.Carousel)
	r.Get("/api/search", catalogHandler.Search)
	r.Post("/api/auth/register", authHandler.Register)
	r.Get("/ws/watch", watchHandler.Handle)

	r.Group(func(r chi.Router) {
		r.Use(appMiddleware.StrictRateLimiter(ctx, a.logger))
		r.Post("/api/auth/login", authHandler.Login)
	})

	// Protected API routes
	r.Group(func(r chi.Router) {
		r.Use(appMiddleware.Auth(a.auth))

		r.Get("/api/auth/me", authHandler.Me)
		r.Post("/api/subscribe", subHandler.Subscribe)
		r.Get("/api/subscription", subHandler.Status)
		r.Get("/api/settlements/{ref}", subHandler.Settlement)

		r.With(appMiddleware.RequireSubscription(a.subs)).
			Get("/api/watch/{kind}/{id}", catalogHandler.Watch)

		// Admin routes
		r.Group(func(r chi.Router) {
			r.Use(appMiddleware.AdminOnly(a.policy))
			r.Get("/api/admin/stats", adminHandler.Stats)
			r.Get("/api/admin/users", adminHandler.ListUsers)
			r.Put("/api/admin/users/{id}/role", adminHandler.SetRole)
			r.Get("/api/admin/wallet", adminHandler.Wallet)
			r.Post("/api/admin/wallet/withdraw", adminHandler.Withdraw)
			r.Get("/api/admin/settlements", adminHandler.Settlements)
			r.Post("/api/admin/settlements/reconcile", adminHandler.Reconcile)
		})
	})

	return r
}
