// Command worker runs the ingest worker (C7): a durable consumer on one of
// {metrics, discovery, alerts} that writes decoded messages to the store.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/noiseless47/optilab-collector/internal/bus"
	"github.com/noiseless47/optilab-collector/internal/config"
	"github.com/noiseless47/optilab-collector/internal/ingest"
	"github.com/noiseless47/optilab-collector/internal/store"
)

func main() {
	os.Exit(run())
}

func run() int {
	queue := flag.String("queue", "", "queue to consume: metrics, discovery, or alerts")
	verbose := flag.Bool("verbose", false, "enable debug-level logging")
	flag.Parse()

	var logger *zap.Logger
	var err error
	if *verbose {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return 1
	}
	defer logger.Sync()

	subject, durable, ok := resolveQueue(*queue)
	if !ok {
		logger.Error("invalid --queue, expected one of {metrics, discovery, alerts}", zap.String("got", *queue))
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

	consumer, err := busClient.NewConsumer(subject, durable, 10)
	if err != nil {
		logger.Error("failed to create consumer", zap.Error(err))
		return 1
	}

	w := ingest.NewWorker(st, logger)
	handler := handlerFor(*queue, w)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-quit
		logger.Info("shutdown signal received")
		cancel()
	}()

	logger.Info("worker starting", zap.String("queue", *queue), zap.String("subject", subject))
	if err := consumer.Run(ctx, handler); err != nil {
		logger.Error("consumer exited with error", zap.Error(err))
		return 1
	}

	stats := w.Stats()
	logger.Info("worker shut down cleanly",
		zap.Int64("processed", stats.Processed),
		zap.Int64("errors", stats.Errors),
		zap.Float64("messages_per_sec", stats.MessagesPerSec),
	)
	return 0
}

func resolveQueue(queue string) (subject, durableName string, ok bool) {
	switch queue {
	case "metrics":
		return bus.SubjectMetrics, "optilab-metrics-worker", true
	case "discovery":
		return bus.SubjectDiscovery, "optilab-discovery-worker", true
	case "alerts":
		return bus.SubjectAlerts, "optilab-alerts-worker", true
	default:
		return "", "", false
	}
}

func handlerFor(queue string, w *ingest.Worker) bus.Handler {
	switch queue {
	case "metrics":
		return w.HandleMetric
	case "discovery":
		return w.HandleDiscovery
	default:
		return w.HandleAlert
	}
}
