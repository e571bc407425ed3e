package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// generateWorkerID creates a unique worker ID using hostname and PID
func generateWorkerID() string {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "worker"
	}
	return fmt.Sprintf("%s-%d", hostname, os.Getpid())
}

type Config struct {
	Port        string
	Environment string
	LogLevel    string

	// Storage
	DatabaseURL string
	MongoDBURL  string
	MongoDBName string
	RedisURL    string

	// Auth
	JWTSecret     string
	JWKSURL       string
	EncryptionKey string

	// OpenAI
	OpenAIAPIKey    string
	LLMModel        string
	LLMTokenBudget  int
	LLMTimeoutSec   int
	LLMMaxRetries   int
	LLMBreakerTrips int

	// OAuth - Google
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
	FrontendURL        string

	// Worker
	WorkerID         string
	WorkerCount      int
	WorkerQueueSize  int
	WorkerJobTimeout time.Duration
	WorkerMaxRetries int

	// Consumer (Redis Stream)
	ConsumerGroup           string
	ConsumerBlockMS         int
	ConsumerMaxRetries      int
	ConsumerPendingCheckSec int

	// Scheduler
	SchedulerEnabled  bool
	SchedulerInterval time.Duration

	// HTTP
	AllowedOrigins  []string
	SyncRateLimit   int
	SyncRateWindow  time.Duration
	MaxBodyBytes    int
	ShutdownTimeout time.Duration
	SyncLockTTL     time.Duration

	// PolicyFile points at an optional YAML file with pipeline overrides.
	PolicyFile string
}

// Load reads .env when present, then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		MongoDBURL:  getEnv("MONGODB_URL", ""),
		MongoDBName: getEnv("MONGODB_DATABASE", "jobcat"),
		RedisURL:    getEnv("REDIS_URL", ""),

		JWTSecret:     getEnv("JWT_SECRET", ""),
		JWKSURL:       getEnv("JWKS_URL", ""),
		EncryptionKey: getEnv("TOKEN_ENCRYPTION_KEY", ""),

		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		LLMModel:        getEnv("LLM_MODEL", "gpt-4o-mini"),
		LLMTokenBudget:  getEnvInt("LLM_TOKEN_BUDGET", 6000),
		LLMTimeoutSec:   getEnvInt("LLM_TIMEOUT_SEC", 60),
		LLMMaxRetries:   getEnvInt("LLM_MAX_RETRIES", 3),
		LLMBreakerTrips: getEnvInt("LLM_BREAKER_TRIPS", 5),

		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURL:  getEnv("GOOGLE_REDIRECT_URL", "http://localhost:8080/oauth/google/callback"),
		FrontendURL:        strings.TrimRight(getEnv("FRONTEND_URL", "http://localhost:3000"), "/"),

		WorkerID:         getEnv("WORKER_ID", generateWorkerID()),
		WorkerCount:      getEnvInt("WORKER_COUNT", 4),
		WorkerQueueSize:  getEnvInt("WORKER_QUEUE_SIZE", 16),
		WorkerJobTimeout: time.Duration(getEnvInt("WORKER_JOB_TIMEOUT_SEC", 300)) * time.Second,
		WorkerMaxRetries: getEnvInt("WORKER_MAX_RETRIES", 2),

		ConsumerGroup:           getEnv("CONSUMER_GROUP", "jobcat-workers"),
		ConsumerBlockMS:         getEnvInt("CONSUMER_BLOCK_MS", 5000),
		ConsumerMaxRetries:      getEnvInt("CONSUMER_MAX_RETRIES", 3),
		ConsumerPendingCheckSec: getEnvInt("CONSUMER_PENDING_CHECK_SEC", 30),

		SchedulerEnabled:  getEnvBool("SCHEDULER_ENABLED", false),
		SchedulerInterval: time.Duration(getEnvInt("SCHEDULER_INTERVAL_MIN", 15)) * time.Minute,

		AllowedOrigins:  getEnvSlice("ALLOWED_ORIGINS", []string{"http://localhost:3000", "http://localhost:5173"}),
		SyncRateLimit:   getEnvInt("SYNC_RATE_LIMIT", 6),
		SyncRateWindow:  time.Duration(getEnvInt("SYNC_RATE_WINDOW_SEC", 60)) * time.Second,
		MaxBodyBytes:    getEnvInt("MAX_BODY_BYTES", 1<<20),
		ShutdownTimeout: time.Duration(getEnvInt("SHUTDOWN_TIMEOUT_SEC", 30)) * time.Second,
		SyncLockTTL:     time.Duration(getEnvInt("SYNC_LOCK_TTL_SEC", 600)) * time.Second,

		PolicyFile: getEnv("POLICY_FILE", ""),
	}

	if cfg.IsProduction() {
		if cfg.JWTSecret == "" && cfg.JWKSURL == "" {
			return nil, fmt.Errorf("JWT_SECRET or JWKS_URL is required in production")
		}
		if cfg.EncryptionKey == "" {
			return nil, fmt.Errorf("TOKEN_ENCRYPTION_KEY is required in production")
		}
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
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

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
