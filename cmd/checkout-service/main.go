package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/jcmexdev/ecommerce-checkout/internal/order/app"
	"github.com/jcmexdev/ecommerce-checkout/internal/order/infra/httpx"
	"github.com/jcmexdev/ecommerce-checkout/internal/order/infra/sqlite"
	"github.com/jcmexdev/ecommerce-checkout/internal/order/infra/stripepay"
	"github.com/jcmexdev/ecommerce-checkout/internal/pkg/cache"
	"github.com/jcmexdev/ecommerce-checkout/internal/pkg/config"
	"github.com/jcmexdev/ecommerce-checkout/internal/pkg/telemetry"
)

func main() {
	if err := run(); err != nil {
		slog.Error("checkout-service exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(getEnv("CONFIG_PATH", "config.yaml"))
	if err != nil {
		return err
	}

	telemetry.InitLogger(cfg.Service.Name, cfg.Service.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := telemetry.SetupTracer(ctx, cfg.Service.Name)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(flushCtx); err != nil {
			slog.Error("tracer shutdown failed", "error", err)
		}
	}()

	store, err := sqlite.Open(cfg.Storage.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	dedup := cache.NewEventDeduper(cfg.Redis.Addr, cfg.Service.Name)
	defer dedup.Close()

	gateway := stripepay.New(stripepay.Config{
		APIKey:  cfg.Stripe.SecretKey,
		BaseURL: cfg.Stripe.BaseURL,
	})

	service := app.NewService(store, gateway, app.CheckoutConfig{
		Currency:   cfg.Stripe.Currency,
		SuccessURL: cfg.Stripe.SuccessURL,
		CancelURL:  cfg.Stripe.CancelURL,
	})
	reconciler := app.NewReconciler(store, dedup)

	router := httpx.NewRouter(
		httpx.NewOrderHandler(service),
		httpx.NewWebhookHandler(reconciler),
	)

	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           otelhttp.NewHandler(router, "checkout-http"),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("checkout-service listening", "addr", cfg.HTTP.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		slog.Info("shutting down")
		drainCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(drainCtx); err != nil {
			return err
		}
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
