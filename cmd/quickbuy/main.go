// OPF Quick Buy - Apple Pay and Google Pay checkout against the OPF storefront API.
// Designed for Cloud Run deployment; wallet sessions live in process memory.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	slogotel "github.com/remychantenay/slog-otel"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"opf-quickbuy/internal/adapter"
	"opf-quickbuy/internal/browser"
	"opf-quickbuy/internal/config"
	"opf-quickbuy/internal/handler"
	"opf-quickbuy/internal/middleware"
	"opf-quickbuy/internal/opf"
	"opf-quickbuy/internal/payment"
	"opf-quickbuy/internal/wallet"
)

// sweepInterval is how often idle wallet sessions are reclaimed.
const sweepInterval = time.Minute

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Initialize structured logger
	logger := initLogger()
	slog.SetDefault(logger)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	// Load configuration
	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger.Info("configuration loaded",
		slog.String("merchant_id", cfg.MerchantID),
		slog.String("environment", cfg.Environment),
		slog.String("storefront", cfg.Storefront.BaseURL),
		slog.String("context_path", cfg.Storefront.ContextPath),
	)

	// One client per storefront; each request binds it to the shopper's cookies
	client, err := opf.New(cfg.OPF(logger))
	if err != nil {
		return fmt.Errorf("creating storefront client: %w", err)
	}
	storefronts := adapter.FactoryFunc(func(cookies []*http.Cookie) adapter.Storefront {
		return client.ForShopper(cookies)
	})

	registry := wallet.NewRegistry(cfg.SessionTTL, logger)
	go registry.Run(ctx, sweepInterval)

	h := handler.New(storefronts, registry, wallet.Options{
		Pipeline: payment.NewPipeline(cfg.Storefront.SubmitMaxAttempts, logger),
		Settings: cfg.Wallet(),
		Logger:   logger,
	}, logger)

	// Setup routes
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	// Apply middleware chain: recovery → request id → logging → browser info → handler
	// Recovery must be outermost to catch panics from logging middleware
	httpHandler := middleware.Chain(
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Logging(logger),
		browser.Middleware(logger),
	)(mux)

	// Create HTTP server with timeouts
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      otelhttp.NewHandler(httpHandler, "opf-quickbuy"),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Channel for shutdown signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Channel for server errors
	serverErr := make(chan error, 1)

	// Start server in goroutine
	go func() {
		logger.Info("server starting",
			slog.String("port", cfg.Port),
			slog.String("addr", server.Addr),
		)
		serverErr <- server.ListenAndServe()
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-serverErr:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-shutdown:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		// Give outstanding requests time to complete
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			// Force close if graceful shutdown fails
			server.Close()
			return fmt.Errorf("shutdown error: %w", err)
		}
	}

	stop()
	logger.Info("server stopped", slog.Int("open_sessions", registry.Len()))
	return nil
}

// initLogger creates a structured logger configured for the environment.
// Production uses JSON format for GCP Cloud Logging compatibility.
// Development uses text format for readability.
// Records carry the trace and span of the request context.
func initLogger() *slog.Logger {
	var level slog.Level
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
		// Add source location in debug mode
		AddSource: level == slog.LevelDebug,
	}

	// JSON for production (Cloud Logging compatible), text for development
	var next slog.Handler = slog.NewTextHandler(os.Stdout, opts)
	if os.Getenv("ENVIRONMENT") == "production" {
		next = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(slogotel.OtelHandler{Next: next})
}
