// Package main 用量事件消费者入口
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"content-gen-api/internal/config"
	"content-gen-api/internal/infrastructure/messaging"
	"content-gen-api/internal/wire"
	"content-gen-api/pkg/logger"
	"content-gen-api/pkg/tracer"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Observability.Logging.Level, cfg.Observability.Logging.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdown, err := tracer.Init(ctx, tracer.Config{
		ServiceName: cfg.App.Name + "-usage-worker",
		Endpoint:    cfg.Observability.Tracing.Endpoint,
		SampleRate:  cfg.Observability.Tracing.SampleRate,
		Enabled:     cfg.Observability.Tracing.Enabled,
	})
	if err != nil {
		logger.Fatal(ctx, "failed to init tracer", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	if !cfg.Messaging.RedisStream.Enabled {
		logger.Warn(ctx, "redis stream disabled, usage worker has nothing to consume")
		return
	}

	worker, cleanup, err := wire.InitializeUsageWorker(ctx, cfg)
	if err != nil {
		logger.Fatal(ctx, "failed to initialize usage worker", err)
	}
	defer cleanup()

	worker.Consumer.RegisterHandler(
		messaging.MessageTypeContentGenerated,
		messaging.GenerationEventHandler(worker.Recorder.RecordGenerationEvent),
	)
	if err := worker.Consumer.Start(ctx); err != nil {
		logger.Fatal(ctx, "failed to start consumer", err)
	}
	logger.Info(ctx, "usage worker started",
		"stream", messaging.StreamContentGenerated,
		"group", messaging.ConsumerGroupUsageRecorder,
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info(ctx, "shutting down usage worker...")
	cancel()
	worker.Consumer.Stop()
	logger.Info(ctx, "usage worker exited")
}
