package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/benvon/smart-docs/internal/config"
	"github.com/benvon/smart-docs/internal/document"
	"github.com/benvon/smart-docs/internal/logger"
	"github.com/benvon/smart-docs/internal/queue"
	"github.com/benvon/smart-docs/internal/services/agent"
	"github.com/benvon/smart-docs/internal/services/ai"
	"github.com/benvon/smart-docs/internal/store"
	"github.com/benvon/smart-docs/internal/telemetry"
	"github.com/benvon/smart-docs/internal/workers"
)

const serviceName = "smart-docs-worker"

func main() {
	// Parse command-line flags
	debugFlag := flag.Bool("debug", false, "Enable debug mode for LLM API logging")
	devFlag := flag.Bool("dev", false, "Use the console log encoder")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Override debug mode if flag is set
	debugMode := cfg.WorkerDebugMode || *debugFlag

	zapLogger, err := logger.New(logger.Options{Service: serviceName, Debug: debugMode, Development: *devFlag})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() {
		_ = logger.Sync(zapLogger)
	}()

	zapLogger.Info("starting_worker",
		zap.Bool("debug_mode", debugMode),
		zap.String("data_dir", cfg.DataDir),
		zap.String("ai_provider", cfg.AIProvider),
		zap.String("ai_model", cfg.AIModel),
	)

	if cfg.RabbitMQURL == "" {
		zapLogger.Fatal("rabbitmq_url_required")
	}

	tracerProvider := telemetry.Setup(context.Background(), serviceName, telemetry.Settings{
		Enabled:     cfg.OTELEnabled,
		Endpoint:    cfg.OTELEndpoint,
		SampleRatio: cfg.OTELSampleRatio,
	}, zapLogger)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := telemetry.Shutdown(shutdownCtx, tracerProvider); err != nil {
			zapLogger.Error("failed_to_shutdown_otel_tracer", zap.Error(err))
		}
	}()

	normalizer := document.New()
	if cfg.SchemaPath != "" {
		schema, err := document.LoadSchema(cfg.SchemaPath)
		if err != nil {
			zapLogger.Fatal("failed_to_load_schema", zap.Error(err))
		}
		normalizer = document.New(document.WithSchema(schema))
	}

	fileStore, err := store.NewFileStore(cfg.DataDir, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed_to_open_document_store", zap.Error(err))
	}

	// Without a provider every job is dead-lettered, which keeps the queue draining
	aiProvider, err := createAIProvider(context.Background(), cfg, zapLogger, debugMode)
	if err != nil {
		zapLogger.Warn("ai_provider_unavailable_jobs_will_be_dead_lettered", zap.Error(err))
		aiProvider = nil
	} else {
		zapLogger.Info("initialized_ai_provider",
			zap.String("provider", aiProvider.Name()),
			zap.String("model", aiProvider.Model()))
	}

	jobQueue, err := queue.NewRabbitMQQueue(cfg.RabbitMQURL, zapLogger, queue.WithQueuePrefix(cfg.RabbitMQQueuePrefix))
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_rabbitmq", zap.Error(err))
	}
	defer func() {
		if err := jobQueue.Close(); err != nil {
			zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
		}
	}()
	zapLogger.Info("connected_to_rabbitmq", zap.Int("prefetch", cfg.RabbitMQPrefetch))

	generator := agent.NewGenerator(aiProvider, normalizer, zapLogger)
	worker := workers.NewContentWorker(generator, fileStore, jobQueue, zapLogger)

	// Cancelled on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := worker.Run(ctx, jobQueue, cfg.RabbitMQPrefetch); err != nil {
		zapLogger.Error("worker_stopped_with_error", zap.Error(err))
		return
	}

	zapLogger.Info("worker_stopped")
}

// createAIProvider creates an AI provider based on configuration
func createAIProvider(ctx context.Context, cfg *config.Config, zapLogger *zap.Logger, debugMode bool) (ai.AIProvider, error) {
	if !cfg.AIEnabled() {
		return nil, fmt.Errorf("no API key configured for provider %q", cfg.AIProvider)
	}
	return ai.DefaultRegistry().GetProvider(ctx, cfg.AIProvider, ai.ProviderConfig{
		APIKey:    cfg.APIKey(),
		Model:     cfg.AIModel,
		BaseURL:   cfg.AIBaseURL,
		Logger:    zapLogger,
		DebugMode: debugMode,
	})
}
