// Command collector runs the fleet telemetry control loop: subnet
// discovery, adaptive metric polling, and publishing onto the message bus.
// It accepts one positional argument in {scan, heartbeat}: scan runs a
// single discovery pass and exits; heartbeat runs the full control loop
// until signalled.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.uber.org/zap"

	"github.com/noiseless47/optilab-collector/internal/bus"
	"github.com/noiseless47/optilab-collector/internal/config"
	"github.com/noiseless47/optilab-collector/internal/controlloop"
	"github.com/noiseless47/optilab-collector/internal/discovery"
	"github.com/noiseless47/optilab-collector/internal/orchestrator"
	"github.com/noiseless47/optilab-collector/internal/scheduler"
	"github.com/noiseless47/optilab-collector/internal/sshpool"
	"github.com/noiseless47/optilab-collector/internal/store"
	"github.com/noiseless47/optilab-collector/internal/telemetry"
)

func main() {
	os.Exit(run())
}

func run() int {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	mode := "heartbeat"
	if len(os.Args) > 1 {
		mode = os.Args[1]
	}
	if mode != "scan" && mode != "heartbeat" {
		logger.Error("invalid positional argument, expected {scan, heartbeat}", zap.String("got", mode))
		return 1
	}

	configPath := os.Getenv("OPTILAB_CONFIG_FILE")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Error("failed to load configuration", zap.Error(err))
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	providers, err := telemetry.Init(ctx, "optilab-collector", cfg.Telemetry.OTLPEndpoint)
	if err != nil {
		logger.Error("failed to init OTel providers", zap.Error(err))
		return 1
	}
	if providers != nil {
		defer providers.Shutdown(context.Background())
	}
	metrics, err := telemetry.NewCollectorMetrics()
	if err != nil {
		logger.Error("failed to init collector metrics", zap.Error(err))
		return 1
	}

	st, err := store.Open(ctx, cfg.DB.DSN)
	if err != nil {
		logger.Error("failed to open store", zap.Error(err))
		return 1
	}
	defer st.Close()

	busClient, err := bus.Connect(cfg.Broker.URL(), logger)
	if err != nil {
		logger.Error("failed to connect to message bus", zap.Error(err))
		return 1
	}
	defer busClient.Close()

	pool := sshpool.New(sshpool.WithConnectTimeout(cfg.SSH.Timeout))
	defer pool.CloseAll()

	keyPEM, err := os.ReadFile(cfg.SSH.PrivateKey)
	if err != nil {
		logger.Error("failed to read ssh private key", zap.String("path", cfg.SSH.PrivateKey), zap.Error(err))
		return 1
	}
	cred := sshpool.Credential{User: cfg.SSH.User, PrivateKeyPEM: keyPEM}

	sched := scheduler.New()
	pipeline := discovery.New(st, pool, busClient, cred, logger)
	pipeline.Workers = cfg.Scan.MaxWorkers

	if mode == "scan" {
		if err := pipeline.RunAll(ctx); err != nil {
			logger.Error("discovery scan failed", zap.Error(err))
			return 1
		}
		logger.Info("discovery scan complete")
		return 0
	}

	orch := orchestrator.New(st, pool, sched, busClient, cred, metrics, logger)
	orch.MaxWorkers = cfg.Collection.MaxWorkers

	loop := controlloop.New(pipeline, orch, logger, controlloop.Config{
		DiscoveryInterval:  time.Duration(cfg.Scan.IntervalSeconds) * time.Second,
		CollectionInterval: time.Duration(cfg.Collection.IntervalSeconds) * time.Second,
	})

	e := newOpsServer(logger)
	go func() {
		logger.Info("ops HTTP server listening", zap.String("addr", cfg.HTTP.Addr))
		if err := e.Start(cfg.HTTP.Addr); err != nil && err != http.ErrServerClosed {
			logger.Error("ops HTTP server failure", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-quit
		logger.Info("shutdown signal received")
		cancel()
	}()

	if err := loop.Run(ctx); err != nil {
		logger.Error("control loop exited with error", zap.Error(err))
		return 1
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("ops HTTP server shutdown error", zap.Error(err))
	}

	logger.Info("collector shut down cleanly")
	return 0
}

func newOpsServer(logger *zap.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(otelecho.Middleware("optilab-collector"))
	e.Use(middleware.Recover())

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/statusz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "running", "component": "collector"})
	})
	_ = logger
	return e
}
