package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/ulule/limiter/v3"
)

// Provider names accepted in AI_PROVIDER
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Config holds application configuration
type Config struct {
	ServerPort           string
	DataDir              string
	FrontendURL          string
	AIProvider           string
	GoogleAPIKey         string
	OpenAIKey            string
	AIModel              string
	AIBaseURL            string
	SchemaPath           string
	RecommenderDataPath  string
	RecommenderModelPath string
	RedisURL             string
	RateLimit            string
	RabbitMQURL          string
	RabbitMQPrefetch     int
	RabbitMQQueuePrefix  string
	EnableHSTS           bool
	WorkerDebugMode      bool
	ServerDebugMode      bool
	OTELEnabled          bool
	OTELEndpoint         string
	OTELSampleRatio      float64
}

// Load reads configuration from the environment. Variables from an optional
// .env file (ENV_FILE overrides the path) fill in anything not already set.
func Load() (*Config, error) {
	if err := loadEnvFile(getEnv("ENV_FILE", ".env")); err != nil {
		return nil, err
	}

	cfg := &Config{
		ServerPort:           getEnv("SERVER_PORT", "8000"),
		DataDir:              getEnv("DATA_DIR", "./data"),
		FrontendURL:          getEnv("FRONTEND_URL", "http://localhost:5173"),
		AIProvider:           strings.ToLower(getEnv("AI_PROVIDER", ProviderGemini)),
		GoogleAPIKey:         getEnv("GOOGLE_API_KEY", ""),
		OpenAIKey:            getEnv("OPENAI_API_KEY", ""),
		AIModel:              getEnv("AI_MODEL", getEnv("MODEL_NAME", "")),
		AIBaseURL:            getEnv("AI_BASE_URL", ""),
		SchemaPath:           getEnv("SCHEMA_PATH", ""),
		RecommenderDataPath:  getEnv("RECOMMENDER_DATA_PATH", "./clustered.csv"),
		RecommenderModelPath: getEnv("RECOMMENDER_MODEL_PATH", "./kproto_model.json"),
		RedisURL:             getEnv("REDIS_URL", ""),
		RateLimit:            getEnv("RATE_LIMIT", "30-M"),
		RabbitMQURL:          getEnv("RABBITMQ_URL", ""),
		RabbitMQPrefetch:     getEnvInt("RABBITMQ_PREFETCH", 1),
		RabbitMQQueuePrefix:  getEnv("RABBITMQ_QUEUE_PREFIX", "document_generation"),
		EnableHSTS:           getEnvBool("ENABLE_HSTS", false),
		WorkerDebugMode:      getEnvBool("WORKER_DEBUG_MODE", false),
		ServerDebugMode:      getEnvBool("SERVER_DEBUG_MODE", false),
		OTELEnabled:          getEnvBool("OTEL_ENABLED", false),
		OTELEndpoint:         getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTELSampleRatio:      getEnvFloat("OTEL_SAMPLE_RATIO", 1.0),
	}

	if cfg.RabbitMQPrefetch < 1 {
		cfg.RabbitMQPrefetch = 1
	}
	if cfg.OTELSampleRatio < 0 || cfg.OTELSampleRatio > 1 {
		cfg.OTELSampleRatio = 1.0
	}

	switch cfg.AIProvider {
	case ProviderGemini, ProviderOpenAI:
	default:
		return nil, fmt.Errorf("unsupported AI_PROVIDER %q (must be %q or %q)", cfg.AIProvider, ProviderGemini, ProviderOpenAI)
	}

	if _, err := limiter.NewRateFromFormatted(cfg.RateLimit); err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT %q: %w", cfg.RateLimit, err)
	}

	return cfg, nil
}

// APIKey returns the credential of the configured provider
func (c *Config) APIKey() string {
	if c.AIProvider == ProviderOpenAI {
		return c.OpenAIKey
	}
	return c.GoogleAPIKey
}

// AIEnabled reports whether LLM-backed features can run
func (c *Config) AIEnabled() bool {
	return c.APIKey() != ""
}

func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
