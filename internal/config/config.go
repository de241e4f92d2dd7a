package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Realtime RealtimeConfig
	Review   ReviewConfig
	Tracing  TracingConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	SessionLogFilePath string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
}

type DatabaseConfig struct {
	Driver       string // "postgres" or "sqlite"
	Connection   string
	MaxOpenConns int
	MaxIdleConns int
}

type AuthConfig struct {
	JwtSecret string
}

type RealtimeConfig struct {
	Driver string // "memory", "nats" or "redis"
	Prefix string
}

// TracingConfig is off unless OTEL_ENABLED is set.
type TracingConfig struct {
	Enabled     bool
	Endpoint    string
	Insecure    bool
	SampleRatio float64
	ServiceName string
}

// ReviewConfig holds the session timings. Defaults match the review UI.
type ReviewConfig struct {
	UseTestData     bool
	FetchDebounce   time.Duration
	LoadingFallback time.Duration
	CompletionDelay time.Duration
	CountdownTick   time.Duration
	SafetyTimeout   time.Duration
	SessionIdleTTL  time.Duration
	DefaultImageURL string
	DefaultTitle    string
	DefaultPrompt   string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			SessionLogFilePath: getEnv("SESSION_LOG_FILE_PATH", "logs/session.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
		},
		Database: DatabaseConfig{
			Driver:       getEnv("DB_DRIVER", "postgres"),
			Connection:   getEnv("DB_CONNECTION_STRING", ""),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 100),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
		},
		Auth: AuthConfig{
			JwtSecret: getEnv("JWT_SECRET", ""),
		},
		Realtime: RealtimeConfig{
			Driver: getEnv("REALTIME_DRIVER", "memory"),
			Prefix: getEnv("REALTIME_PREFIX", "changes"),
		},
		Review: ReviewConfig{
			UseTestData:     getEnvAsBool("REVIEW_USE_TEST_DATA", false),
			FetchDebounce:   getEnvAsDuration("REVIEW_FETCH_DEBOUNCE", time.Second),
			LoadingFallback: getEnvAsDuration("REVIEW_LOADING_FALLBACK", 5*time.Second),
			CompletionDelay: getEnvAsDuration("REVIEW_COMPLETION_DELAY", 1500*time.Millisecond),
			CountdownTick:   getEnvAsDuration("REVIEW_COUNTDOWN_TICK", time.Second),
			SafetyTimeout:   getEnvAsDuration("REVIEW_SAFETY_TIMEOUT", 90*time.Second),
			SessionIdleTTL:  getEnvAsDuration("REVIEW_SESSION_IDLE_TTL", 30*time.Minute),
			DefaultImageURL: getEnv("REVIEW_DEFAULT_IMAGE_URL", "/static/placeholder.png"),
			DefaultTitle:    getEnv("REVIEW_DEFAULT_TITLE", "Untitled product"),
			DefaultPrompt:   getEnv("REVIEW_DEFAULT_PROMPT", "Generate design concepts for this product."),
		},
		Tracing: TracingConfig{
			Enabled:     getEnvAsBool("OTEL_ENABLED", false),
			Endpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
			Insecure:    getEnvAsBool("OTEL_EXPORTER_OTLP_INSECURE", true),
			SampleRatio: getEnvAsFloat("OTEL_TRACES_SAMPLER_ARG", 1),
			ServiceName: getEnv("OTEL_SERVICE_NAME", "concept-review-backend"),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}
