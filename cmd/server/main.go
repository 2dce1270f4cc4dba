package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/TheZeroSlave/zapsentry"
	"github.com/dimpoz/backend/internal/config"
	"github.com/dimpoz/backend/internal/repository"
	"github.com/dimpoz/backend/internal/store"
	"github.com/dimpoz/backend/pkg/payment"
	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	// Load .env file if present (for local development)
	if err := config.LoadDotEnv(); err != nil {
		log.Fatalf("Cannot load .env: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("Cannot initialize logger: %v", err)
	}
	defer logger.Sync()
	defer sentry.Flush(2 * time.Second)
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	keys, err := store.NewKeyGenerator(cfg.SnowflakeNode)
	if err != nil {
		logger.Fatal("Cannot create key generator", zap.Error(err))
	}

	st, closeStore, err := repository.OpenStore(ctx, cfg, keys, logger)
	if err != nil {
		logger.Fatal("Cannot open store", zap.String("backend", cfg.StoreBackend), zap.Error(err))
	}
	defer closeStore()
	logger.Info("Store ready", zap.String("backend", cfg.StoreBackend))

	a, err := newApp(cfg, logger, st, keys, newGateway(cfg, logger))
	if err != nil {
		logger.Fatal("Cannot wire services", zap.Error(err))
	}

	// Seed the first allow-listed admin on first startup
	if len(cfg.AdminEmails) > 0 {
		if err := a.auth.SeedAdmin(ctx, cfg.AdminEmails[0], cfg.AdminPassword); err != nil {
			logger.Fatal("Admin seed error", zap.Error(err))
		}
	}

	a.reconciler.Start(ctx)

	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	server := &http.Server{
		Addr:        addr,
		Handler:     a.Router(ctx),
		ReadTimeout: 30 * time.Second,
		// WriteTimeout stays 0: checkouts wait on the payer and watch streams are long-lived
		IdleTimeout: 120 * time.Second,
	}

	go func() {
		<-ctx.Done()
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Shutdown incomplete", zap.Error(err))
		}
	}()

	logger.Info("DIMPOZ backend listening", zap.String("addr", addr), zap.String("env", cfg.Env))
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		logger.Fatal("Server error", zap.Error(err))
	}
}

// newLogger builds a production or development zap logger and, when a
// DSN is configured, forwards error logs to sentry.
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	var logger *zap.Logger
	var err error
	if cfg.IsProduction() {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		return nil, err
	}

	if cfg.SentryDSN == "" {
		return logger, nil
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.SentryDSN,
		Environment: cfg.Env,
		Debug:       !cfg.IsProduction(),
	}); err != nil {
		return nil, err
	}

	// Attach sentry to zap so we can do automatic error capturing
	core, err := zapsentry.NewCore(zapsentry.Configuration{
		Level: zapcore.ErrorLevel,
		Tags: map[string]string{
			"component": "server",
		},
	}, zapsentry.NewSentryClientFromClient(sentry.CurrentHub().Client()))
	if err != nil {
		return nil, err
	}
	return zapsentry.AttachCoreToLogger(core, logger), nil
}

func newGateway(cfg *config.Config, logger *zap.Logger) payment.Gateway {
	if cfg.GatewayMode == config.GatewayMock {
		logger.Warn("Using mock payment gateway; every payment succeeds")
		return payment.NewMockGateway()
	}
	return payment.NewHTTPGateway(cfg.GatewayURL, cfg.GatewayTimeout)
}
