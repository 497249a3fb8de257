package app

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

	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/modelgate/modelgate-server/internal/api"
	v0 "github.com/modelgate/modelgate-server/internal/api/v0"
	"github.com/modelgate/modelgate-server/internal/auth"
	"github.com/modelgate/modelgate-server/internal/catalog"
	"github.com/modelgate/modelgate-server/internal/config"
	"github.com/modelgate/modelgate-server/internal/db"
	"github.com/modelgate/modelgate-server/internal/sources"
	syncpkg "github.com/modelgate/modelgate-server/internal/sync"
	"github.com/modelgate/modelgate-server/internal/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gateway API server",
	Long: `Start the gateway API server.

The server requires a configuration file (--config) that specifies:
- The upstream model listing endpoint and refresh thresholds
- Database connection settings
- Global quota defaults

See examples/ directory for sample configurations.`,
	RunE: runServe,
}

const (
	defaultGracefulTimeout = 30 * time.Second // Kubernetes-friendly shutdown time
	serverRequestTimeout   = 10 * time.Second // Catalog reads should respond quickly
	serverReadTimeout      = 10 * time.Second // Enough for headers and small requests
	serverWriteTimeout     = 15 * time.Second // Must be > serverRequestTimeout to let middleware handle timeout
	serverIdleTimeout      = 60 * time.Second // Keep connections alive for reuse
)

func init() {
	serveCmd.Flags().String("address", ":8080", "Address to listen on")
	serveCmd.Flags().String("config", "", "Path to configuration file (YAML format, required)")

	if err := viper.BindPFlag("address", serveCmd.Flags().Lookup("address")); err != nil {
		slog.Error("Failed to bind address flag", "error", err)
		os.Exit(1)
	}
	if err := viper.BindPFlag("config", serveCmd.Flags().Lookup("config")); err != nil {
		slog.Error("Failed to bind config flag", "error", err)
		os.Exit(1)
	}

	if err := serveCmd.MarkFlagRequired("config"); err != nil {
		slog.Error("Failed to mark config flag as required", "error", err)
		os.Exit(1)
	}
}

func runServe(_ *cobra.Command, _ []string) error {
	ctx := context.Background()
	address := viper.GetString("address")

	slog.Info("Starting gateway API server", "address", address)

	configPath := viper.GetString("config")
	cfg, err := config.LoadConfig(config.WithConfigPath(configPath))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.Database == nil {
		return fmt.Errorf("database configuration is required")
	}
	slog.Info("Loaded configuration",
		"path", configPath,
		"endpoint", cfg.Catalog.Endpoint)

	conn, err := db.NewConnection(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer conn.Close()

	// Prometheus-backed meter provider; the exporter feeds the default
	// registry scraped at /metrics.
	exporter, err := otelprom.New()
	if err != nil {
		return fmt.Errorf("failed to create prometheus exporter: %w", err)
	}
	meterProvider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	defer func() {
		if err := meterProvider.Shutdown(ctx); err != nil {
			slog.Error("Failed to shut down meter provider", "error", err)
		}
	}()

	validationMetrics, err := telemetry.NewValidationMetrics(meterProvider)
	if err != nil {
		return fmt.Errorf("failed to create validation metrics: %w", err)
	}
	syncMetrics, err := telemetry.NewSyncMetrics(meterProvider)
	if err != nil {
		return fmt.Errorf("failed to create sync metrics: %w", err)
	}

	// Authentication and quota enforcement
	validator := auth.NewValidator(
		auth.NewKeyStore(conn.Queries),
		auth.NewQuotaLedger(conn.Queries),
	)
	authMW := auth.NewMiddleware(validator,
		auth.WithValidationMetrics(validationMetrics))
	syncAuthMW := auth.NewMiddleware(validator,
		auth.WithoutQuota(),
		auth.WithValidationMetrics(validationMetrics))

	// Catalog refresh pipeline
	fetchTimeout, err := cfg.Catalog.GetFetchTimeout()
	if err != nil {
		return fmt.Errorf("invalid fetch timeout: %w", err)
	}
	lockDuration, err := cfg.Catalog.GetLockDuration()
	if err != nil {
		return fmt.Errorf("invalid lock duration: %w", err)
	}
	freshThreshold, err := cfg.Catalog.GetFreshThreshold()
	if err != nil {
		return fmt.Errorf("invalid fresh threshold: %w", err)
	}
	criticalThreshold, err := cfg.Catalog.GetCriticalThreshold()
	if err != nil {
		return fmt.Errorf("invalid critical threshold: %w", err)
	}

	lister := sources.NewAPILister(cfg.Catalog.Endpoint, fetchTimeout)
	syncer := catalog.NewSyncer(lister, conn.Queries, cfg.Catalog.MinContextWindow)
	lock := syncpkg.NewLock(conn.Queries, lockDuration)
	coordinator := syncpkg.NewCoordinator(
		syncer, lock, conn.Queries,
		freshThreshold, criticalThreshold,
		syncpkg.WithSyncMetrics(syncMetrics),
	)

	syncCtx, syncCancel := context.WithCancel(context.Background())
	defer syncCancel()
	go func() {
		if err := coordinator.Start(syncCtx); err != nil {
			slog.Error("Sync coordinator failed", "error", err)
		}
	}()

	routes := v0.NewRoutes(conn.Queries, coordinator)
	router := api.NewServer(routes, conn,
		authMW.Handler, syncAuthMW.Handler,
		api.WithMiddlewares(
			middleware.RequestID,
			middleware.RealIP,
			middleware.Recoverer,
			middleware.Timeout(serverRequestTimeout),
			api.LoggingMiddleware,
		),
		api.WithMetricsHandler(promhttp.Handler()),
	)

	server := &http.Server{
		Addr:         address,
		Handler:      router,
		ReadTimeout:  serverReadTimeout,
		WriteTimeout: serverWriteTimeout,
		IdleTimeout:  serverIdleTimeout,
	}

	go func() {
		slog.Info("Server listening", "address", address)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server...")

	if err := coordinator.Stop(); err != nil {
		slog.Error("Failed to stop sync coordinator", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultGracefulTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		return err
	}

	slog.Info("Server shutdown complete")
	return nil
}
