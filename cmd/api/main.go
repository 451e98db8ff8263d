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

	"go.opentelemetry.io/otel"

	"github.com/dejobratic/orderflow/internal/bootstrap"
	"github.com/dejobratic/orderflow/internal/config"
	"github.com/dejobratic/orderflow/internal/database"
	httpadapter "github.com/dejobratic/orderflow/internal/orders/adapters/http"
	"github.com/dejobratic/orderflow/internal/telemetry"
)

func main() {
	if err := run(); err != nil {
		slog.Error("api exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := telemetry.NewLogger(telemetry.ParseLevel(cfg.Telemetry.LogLevel))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tel, err := telemetry.Initialize(ctx, telemetry.Config{
		ServiceName:      cfg.Service.Name,
		ServiceVersion:   cfg.Service.Version,
		Environment:      cfg.Service.Environment,
		OTLPEndpoint:     cfg.Telemetry.OTelEndpoint,
		EnableTracing:    cfg.Telemetry.EnableTracing,
		EnableMetrics:    cfg.Telemetry.EnableMetrics,
		EnablePrometheus: cfg.Telemetry.EnablePrometheus,
		SampleRate:       cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown failed", "error", err)
		}
	}()

	if cfg.Database.AutoMigrate {
		logger.Info("running database migrations", "path", cfg.Database.MigrationsPath)
		if err := database.RunMigrations(cfg.Database.URL, cfg.Database.MigrationsPath); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		logger.Info("migrations completed successfully")
	}

	deps, err := bootstrap.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := deps.Close(); err != nil {
			logger.Error("failed to release resources", "error", err)
		}
	}()

	httpMetrics, err := httpadapter.NewMetrics(otel.Meter(cfg.Service.Name))
	if err != nil {
		return fmt.Errorf("create http metrics: %w", err)
	}

	handler := httpadapter.NewRouter(
		httpadapter.NewHandler(deps.Service, httpadapter.HeaderBuyerResolver{}, logger),
		httpadapter.RouterConfig{
			Logger:         logger,
			Metrics:        httpMetrics,
			MetricsPath:    cfg.HTTP.MetricsPath,
			MetricsHandler: tel.MetricsHandler(),
			Ready: func(ctx context.Context) error {
				return database.CheckHealth(ctx, deps.Pool)
			},
			RequestTimeout: 30 * time.Second,
		},
	)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      35 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("http server starting", "port", cfg.HTTP.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownGrace)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	logger.Info("http server stopped")
	return nil
}
