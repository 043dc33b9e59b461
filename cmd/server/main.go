package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/productcomposite/backend/config"
	httpDelivery "github.com/productcomposite/backend/internal/delivery/http"
	"github.com/productcomposite/backend/internal/infrastructure/integration"
	"github.com/productcomposite/backend/internal/infrastructure/logger"
	"github.com/productcomposite/backend/internal/infrastructure/telemetry"
	"github.com/productcomposite/backend/internal/usecase"
	"go.uber.org/zap"
)

const version = "1.0.0"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zapLogger := logger.NewForEnvironment(cfg.Server.Environment, cfg.Log.Level, cfg.Log.Format)

	if err := run(cfg, zapLogger); err != nil {
		zapLogger.Error("Server stopped with error", zap.Error(err))
		_ = zapLogger.Sync()
		os.Exit(1)
	}
	_ = zapLogger.Sync()
}

func run(cfg *config.Config, zapLogger *zap.Logger) error {
	zapLogger.Info("Starting Product Composite service",
		zap.String("version", version),
		zap.String("environment", cfg.Server.Environment),
		zap.String("port", cfg.Server.Port),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize telemetry
	telemetryCfg := telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		Insecure:          cfg.Telemetry.Insecure,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		MetricsInterval:   cfg.Telemetry.MetricsInterval,
	}
	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetryCfg, zapLogger)
	if err != nil {
		return fmt.Errorf("failed to create tracer provider: %w", err)
	}
	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetryCfg, zapLogger)
	if err != nil {
		return fmt.Errorf("failed to create meter provider: %w", err)
	}

	// Initialize infrastructure dependencies
	client := integration.NewClient(integration.ClientConfig{
		ProductURL:          cfg.Services.ProductURL(),
		RecommendationURL:   cfg.Services.RecommendationURL(),
		ReviewURL:           cfg.Services.ReviewURL(),
		ConnectTimeout:      cfg.HTTPClient.ConnectTimeout,
		ReadTimeout:         cfg.HTTPClient.ReadTimeout,
		MaxIdleConnsPerHost: cfg.HTTPClient.MaxIdleConnsPerHost,
		RateLimit:           cfg.RateLimit.Backend,
		RateBurst:           cfg.RateLimit.BackendBurst,
	}, zapLogger)

	zapLogger.Info("Backend services configured",
		zap.String("product", cfg.Services.ProductURL()),
		zap.String("recommendation", cfg.Services.RecommendationURL()),
		zap.String("review", cfg.Services.ReviewURL()),
	)

	// Initialize usecase layer
	compositeService := usecase.NewCompositeService(client, client, client, usecase.CompositeConfig{
		Timeout: cfg.Composite.Timeout,
		Address: serviceAddress(cfg.Server.Port),
	}, zapLogger)

	// Create HTTP handler with dependencies
	handler := httpDelivery.NewHandler(compositeService)

	// Setup router
	router := httpDelivery.SetupRouter(cfg, handler, zapLogger, tracerProvider.Enabled())

	server := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	serverErr := make(chan error, 1)
	go func() {
		zapLogger.Info("Server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
	case <-ctx.Done():
		zapLogger.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Server shutdown failed", zap.Error(err))
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Tracer provider shutdown failed", zap.Error(err))
	}
	if err := meterProvider.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Meter provider shutdown failed", zap.Error(err))
	}

	zapLogger.Info("Server stopped")
	return nil
}

// serviceAddress identifies this instance as host:port
func serviceAddress(port string) string {
	host, err := os.Hostname()
	if err != nil {
		host = "localhost"
	}
	return net.JoinHostPort(host, port)
}
