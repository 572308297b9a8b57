package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gala377/Auster/internal/v1/config"
	"github.com/gala377/Auster/internal/v1/health"
	"github.com/gala377/Auster/internal/v1/httpapi"
	"github.com/gala377/Auster/internal/v1/logging"
	"github.com/gala377/Auster/internal/v1/orchestrator"
	"github.com/gala377/Auster/internal/v1/ratelimit"
	"github.com/gala377/Auster/internal/v1/repository"
	"github.com/gala377/Auster/internal/v1/tracing"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "auster",
		Short: "Auster runs the room-creation service and its per-room runtimes",
	}
	root.AddCommand(newServeCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve <config-path>",
		Short: "Load a TOML config and serve the HTTP API",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(args[0])
		},
	}
}

func serve(configPath string) error {
	// .env is optional: production deployments set real environment
	// variables, local development drops a .env in the working directory.
	_ = godotenv.Load()

	if err := logging.Initialize(os.Getenv("AUSTER_ENV") != "production"); err != nil {
		return fmt.Errorf("could not initialize logging: %w", err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("could not load config: %w", err)
	}

	ctx := context.Background()

	logging.Info(ctx, "config loaded",
		zap.String("mqtt_host", cfg.Mqtt.Host),
		zap.String("mqtt_password", config.RedactSecret(cfg.Mqtt.Password)),
		zap.String("db_host", cfg.Db.Host),
		zap.String("db_password", config.RedactSecret(cfg.Db.Password)),
		zap.String("server_address", cfg.Runtime.ServerAddress),
	)

	if collector := os.Getenv("OTEL_COLLECTOR_ADDR"); collector != "" {
		tp, err := tracing.InitTracer(ctx, "auster", collector)
		if err != nil {
			logging.Warn(ctx, "tracing disabled: could not initialize tracer", zap.Error(err))
		} else {
			defer func() { _ = tp.Shutdown(context.Background()) }()
		}
	}

	repo, err := repository.Run(cfg)
	if err != nil {
		return fmt.Errorf("could not start repository: %w", err)
	}

	orch := orchestrator.New(repo, cfg)
	healthHandler := health.NewHandler(repo, nil)

	limiter, err := ratelimit.NewRateLimiter(cfg)
	if err != nil {
		return fmt.Errorf("could not start rate limiter: %w", err)
	}

	router := httpapi.NewRouter(orch, healthHandler, limiter)

	srv := &http.Server{
		Addr:    cfg.Runtime.ServerAddress,
		Handler: router,
	}

	go func() {
		logging.Info(ctx, "auster serving", zap.String("address", cfg.Runtime.ServerAddress))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatal(ctx, "server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logging.Info(ctx, "shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error(ctx, "server forced to shutdown", zap.Error(err))
	}

	// Per-room runtimes outlive HTTP shutdown (spec.md §5's open
	// question, resolved toward "detach and rely on broker LWT"); only
	// the repository actor is torn down here.
	if err := repo.Close(shutdownCtx); err != nil {
		logging.Error(ctx, "repository close failed", zap.Error(err))
	}

	logging.Info(ctx, "auster exited")
	return nil
}
