package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kenelite/go-solo/internal/config"
	"github.com/kenelite/go-solo/internal/controlplane"
	"github.com/kenelite/go-solo/internal/listener"
	"github.com/kenelite/go-solo/internal/observability"
	"github.com/kenelite/go-solo/internal/ratelimiter"
	"github.com/kenelite/go-solo/internal/registry"
	"github.com/kenelite/go-solo/internal/upstream"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", os.Getenv("SOLO_CONFIG"), "Path to config file (yaml)")
	flag.Parse()

	if configPath == "" {
		configPath = "./deploy/config.yaml"
	}

	cfg, found, err := config.LoadOrDefault(configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(observability.LogConfig{
		Level:       cfg.Observability.LogLevel,
		Development: cfg.Observability.Development,
	})
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if !found {
		logger.Warnw("config file not found, using defaults", "path", configPath)
	}
	logger.Infow("starting solod", "admin_addr", cfg.Server.AdminAddr, "upstreams", len(cfg.Upstreams))

	metrics := observability.NewMetrics()
	reg := registry.New(
		registry.WithLogger(logger.Zap().Named("registry")),
		registry.WithRecorder(metrics),
		registry.WithObserver(observability.NewObserver(logger, metrics)),
	)

	mgr, err := upstream.NewManager(cfg.Upstreams, cfg.Prober, reg, logger)
	if err != nil {
		logger.Fatalw("failed to init upstream manager", "err", err)
	}
	if _, err := mgr.Prober(); err != nil {
		logger.Fatalw("failed to start prober", "err", err)
	}

	mux := http.NewServeMux()
	controlplane.RegisterAdminHandlers(mux, controlplane.Deps{
		Manager: mgr,
		Metrics: metrics,
		Limiter: ratelimiter.New(cfg.Admin.RateLimit.RequestsPerSecond, cfg.Admin.RateLimit.Burst),
		Config:  cfg,
		Logger:  logger,
	})
	adminSrv := listener.NewServer(cfg.Server.AdminAddr, controlplane.Instrument(mux, metrics, logger), logger)

	go func() {
		if err := adminSrv.Start(); err != nil {
			logger.Fatalw("admin server error", "err", err)
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = adminSrv.Shutdown(ctx)
	if err := mgr.Shutdown(); err != nil {
		logger.Warnw("closing resources", "err", err)
	}
}
