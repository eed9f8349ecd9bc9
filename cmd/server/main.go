package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.uber.org/zap"

	"github.com/benvon/smart-docs/internal/config"
	"github.com/benvon/smart-docs/internal/document"
	"github.com/benvon/smart-docs/internal/handlers"
	"github.com/benvon/smart-docs/internal/logger"
	"github.com/benvon/smart-docs/internal/metrics"
	"github.com/benvon/smart-docs/internal/middleware"
	"github.com/benvon/smart-docs/internal/queue"
	"github.com/benvon/smart-docs/internal/services/agent"
	"github.com/benvon/smart-docs/internal/services/ai"
	"github.com/benvon/smart-docs/internal/services/recommend"
	"github.com/benvon/smart-docs/internal/store"
	"github.com/benvon/smart-docs/internal/telemetry"
)

const serviceName = "smart-docs-api"

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

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
	debugMode := cfg.ServerDebugMode || *debugFlag

	zapLogger, err := logger.New(logger.Options{Service: serviceName, Debug: debugMode, Development: *devFlag})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() {
		_ = logger.Sync(zapLogger)
	}()

	zapLogger.Info("starting_server",
		zap.String("version", version),
		zap.Bool("debug_mode", debugMode),
		zap.String("server_port", cfg.ServerPort),
		zap.String("data_dir", cfg.DataDir),
		zap.String("frontend_url", cfg.FrontendURL),
		zap.String("ai_provider", cfg.AIProvider),
		zap.String("ai_model", cfg.AIModel),
		zap.Bool("otel_enabled", cfg.OTELEnabled),
	)

	tracerProvider := telemetry.Setup(context.Background(), serviceName, tracingSettings(cfg), zapLogger)
	if tracerProvider != nil {
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if err := telemetry.Shutdown(shutdownCtx, tracerProvider); err != nil {
				zapLogger.Error("failed_to_shutdown_otel_tracer", zap.Error(err))
			}
		}()
	}

	normalizer, err := newNormalizer(cfg.SchemaPath)
	if err != nil {
		zapLogger.Fatal("failed_to_load_schema", zap.Error(err))
	}

	fileStore, err := store.NewFileStore(cfg.DataDir, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed_to_open_document_store", zap.Error(err))
	}

	aiProvider, err := createAIProvider(context.Background(), cfg, zapLogger, debugMode)
	if err != nil {
		zapLogger.Warn("ai_features_disabled", zap.Error(err))
		aiProvider = nil
	}

	// RabbitMQ is optional: without it new files get their content inline
	var jobQueue queue.JobQueue
	agentOpts := []agent.Option{}
	if cfg.RabbitMQURL != "" {
		q, err := connectRabbitMQ(cfg.RabbitMQURL, cfg.RabbitMQQueuePrefix, zapLogger)
		if err != nil {
			zapLogger.Fatal("failed_to_connect_to_rabbitmq_after_retries", zap.Error(err))
		}
		defer func() {
			if err := q.Close(); err != nil {
				zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
			}
		}()
		jobQueue = q
		agentOpts = append(agentOpts, agent.WithEnqueuer(q))
	}

	assistant := agent.New(aiProvider, fileStore, normalizer, zapLogger, agentOpts...)

	recommender, err := recommend.Load(cfg.RecommenderModelPath, cfg.RecommenderDataPath, normalizer, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed_to_load_recommender", zap.Error(err))
	}

	// Redis is optional: the rate limiter falls back to process memory
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = middleware.NewRedisClient(context.Background(), cfg.RedisURL)
		if err != nil {
			zapLogger.Warn("redis_unavailable_using_memory_rate_limit_store", zap.Error(err))
			redisClient = nil
		} else {
			zapLogger.Info("connected_to_redis")
			defer func() {
				if err := redisClient.Close(); err != nil {
					zapLogger.Warn("failed_to_close_redis_connection", zap.Error(err))
				}
			}()
		}
	}
	rateLimitStore, err := middleware.NewRateLimitStore(redisClient)
	if err != nil {
		zapLogger.Fatal("failed_to_create_rate_limit_store", zap.Error(err))
	}
	rateLimitMW, err := middleware.RateLimit(rateLimitStore, cfg.RateLimit, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed_to_create_rate_limiter", zap.Error(err))
	}

	// Initialize handlers
	healthOpts := []handlers.HealthOption{
		handlers.WithRecommender(recommender),
		handlers.WithVersion(version),
	}
	if redisClient != nil {
		healthOpts = append(healthOpts, handlers.WithRedis(redisClient))
	}
	if jobQueue != nil {
		healthOpts = append(healthOpts, handlers.WithQueue(jobQueue))
	}
	healthChecker := handlers.NewHealthChecker(fileStore, healthOpts...)
	chatHandler := handlers.NewChatHandler(assistant, zapLogger)
	fileHandler := handlers.NewFileHandler(fileStore, normalizer, zapLogger)
	recommendHandler := handlers.NewRecommendHandler(recommender, zapLogger)

	// Setup router
	r := mux.NewRouter()

	// Middleware runs in registration order, the first one is outermost
	if tracerProvider != nil {
		r.Use(otelmux.Middleware(serviceName))
	}
	r.Use(middleware.RequestContext)
	r.Use(middleware.Logging(zapLogger))
	r.Use(middleware.ErrorHandler(zapLogger))
	r.Use(middleware.SecurityHeaders(cfg.EnableHSTS))
	r.Use(middleware.CORS(middleware.ParseOrigins(cfg.FrontendURL), zapLogger))
	r.Use(middleware.MaxRequestSize(middleware.DefaultMaxRequestSize))
	r.Use(middleware.ContentType)
	r.Use(middleware.Timeout(middleware.DefaultRequestTimeout))

	// Public routes (no rate limiting for health checks)
	r.HandleFunc("/healthz", healthChecker.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/health", healthChecker.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/version", healthChecker.Version).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	// LLM-backed routes are rate limited per client
	chatRouter := r.PathPrefix("/chat").Subrouter()
	chatRouter.Use(rateLimitMW)
	chatHandler.RegisterRoutes(chatRouter)

	fileHandler.RegisterRoutes(r)
	recommendHandler.RegisterRoutes(r)

	// Catch-all OPTIONS route so preflight requests reach the CORS middleware
	r.Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	// Setup server
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      middleware.DefaultRequestTimeout + 10*time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1MB max header size
	}

	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()
	if chat := assistant.Chat(); chat != nil {
		go pruneChatSessions(bgCtx, chat, zapLogger)
	}

	// Start server in a goroutine
	go func() {
		zapLogger.Info("server_starting", zap.String("port", cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("server_failed_to_start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("server_shutting_down")
	bgCancel()

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("server_forced_to_shutdown", zap.Error(err))
	}

	zapLogger.Info("server_exited")
}

func newNormalizer(schemaPath string) (*document.Normalizer, error) {
	if schemaPath == "" {
		return document.New(), nil
	}
	schema, err := document.LoadSchema(schemaPath)
	if err != nil {
		return nil, err
	}
	return document.New(document.WithSchema(schema)), nil
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

// connectRabbitMQ retries with exponential backoff to ride out broker startup
func connectRabbitMQ(url, prefix string, zapLogger *zap.Logger) (*queue.RabbitMQQueue, error) {
	const maxRetries = 10
	const initialDelay = 2 * time.Second

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		q, err := queue.NewRabbitMQQueue(url, zapLogger, queue.WithQueuePrefix(prefix))
		if err == nil {
			zapLogger.Info("connected_to_rabbitmq")
			return q, nil
		}
		lastErr = err

		delay := min(initialDelay*time.Duration(1<<uint(attempt)), 30*time.Second)
		zapLogger.Warn("failed_to_connect_to_rabbitmq_retrying",
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", maxRetries),
			zap.Error(err),
			zap.Duration("retry_delay", delay),
		)
		time.Sleep(delay)
	}
	return nil, lastErr
}

func pruneChatSessions(ctx context.Context, chat *ai.ChatService, zapLogger *zap.Logger) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := chat.PruneIdle(time.Hour); n > 0 {
				zapLogger.Info("chat_sessions_pruned", zap.Int("count", n))
			}
		}
	}
}

func tracingSettings(cfg *config.Config) telemetry.Settings {
	return telemetry.Settings{
		Enabled:     cfg.OTELEnabled,
		Endpoint:    cfg.OTELEndpoint,
		SampleRatio: cfg.OTELSampleRatio,
	}
}
