// Package main is the entry point for the Huddle billing API server.
//
// It loads configuration, opens the Postgres pool, wires the billing
// services (checkout orchestration, coupon redemption, webhook
// reconciliation) to their repositories and the Stripe client, builds the
// HTTP server with the core chassis, and starts listening.
//
// Graceful shutdown is handled via OS signal interception (SIGINT, SIGTERM).
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"huddle/internal/api/handlers"
	"huddle/internal/auth"
	"huddle/internal/billing"
	"huddle/internal/config"
	"huddle/internal/core"
	"huddle/internal/db"
	"huddle/internal/external"
	"huddle/internal/types"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on error.
func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("huddle billing API starting",
		"environment", cfg.Environment,
		"port", cfg.Server.Port,
	)

	// Open the database pool. NewPool pings under the acquire timeout, so a
	// misconfigured DATABASE_URL fails here rather than on the first request.
	startupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := db.NewPool(startupCtx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	// Repositories.
	customerLinks := db.NewCustomerLinkRepository(pool)
	coupons := db.NewCouponRepository(pool)
	subscriptions := db.NewSubscriptionRepository(pool)
	users := db.NewUserRepository(pool)

	// Stripe client. One http.Client is shared across all outbound calls;
	// the per-call timeout comes from configuration.
	stripeClient := external.NewStripeClient(
		&http.Client{Timeout: cfg.Billing.RequestTimeout},
		external.StripeClientConfig{
			SecretKey: cfg.Billing.StripeSecretKey,
			Logger:    logger,
		},
	)

	// Billing services. Checkout return destinations are constructed here
	// from the dashboard URL; clients never supply redirect targets.
	redirectURLs := types.RedirectURLs{
		Success: cfg.Server.DashboardURL + "/billing?status=success",
		Cancel:  cfg.Server.DashboardURL + "/billing?status=cancelled",
	}

	resolver := billing.NewCustomerResolver(customerLinks, stripeClient, logger)
	redeemer := billing.NewCouponRedeemer(coupons, logger)
	orchestrator := billing.NewCheckoutOrchestrator(resolver, redeemer, stripeClient, redirectURLs, logger)
	reconciler := billing.NewSubscriptionReconciler(customerLinks, subscriptions, users, stripeClient, logger)

	// Build the server chassis.
	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	srv.Authenticator = auth.NewJWTAuthenticator(cfg.Auth.JWTSecret)
	srv.HealthProbes = []core.HealthProbe{&db.PoolProbe{Pool: pool}}

	// Wire handlers.
	billingHandler := handlers.NewBillingHandler(orchestrator, subscriptions, srv.Validator, logger)
	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars, billingHandler.RegisterRoutes)

	webhookHandler := handlers.NewStripeWebhookHandler(
		&external.StripeVerifier{},
		reconciler,
		cfg.Billing.StripeWebhookSecret,
		logger,
	)
	srv.WebhookRegistrars = append(srv.WebhookRegistrars, webhookHandler.RegisterRoutes)

	srv.MountRoutes()

	return runHTTPServer(srv, cfg, logger)
}

// runHTTPServer starts the server in standard HTTP mode with graceful shutdown.
func runHTTPServer(srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)

	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	// Graceful shutdown with a 10-second deadline. In-flight webhook
	// deliveries get a chance to finish; Stripe redelivers anything cut off.
	logger.Info("initiating graceful shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server resource shutdown error", "error", err)
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}

// newLogger creates a structured slog.Logger configured for the given log level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	return slog.New(handler)
}
