package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ServiceTitle is the fixed title of the HTTP application.
const ServiceTitle = "PDF Query System"

type Config struct {
	MongoURI    string
	DBName      string
	Port        string
	GinMode     string
	CORSOrigins []string
	MaxFileSize int64

	// Media storage
	StorageProvider     string // "cloudinary" (default), "minio"
	CloudinaryCloudName string
	CloudinaryAPIKey    string
	CloudinaryAPISecret string
	CloudinaryFolder    string
	MinioEndpoint       string
	MinioAccessKey      string
	MinioSecretKey      string
	MinioBucket         string

	// Gemini
	GeminiAPIKey    string
	GeminiModel     string
	GeminiTier      string
	MaxContextChars int

	// Redis Configuration
	RedisURL       string
	RedisPassword  string
	RedisDB        int
	AnswerCacheTTL int // seconds, 0 disables the cache

	RateLimitReqs   int
	RateLimitWindow int

	AsyncProcessing bool

	// Lifecycle timeouts in seconds
	StartupTimeout  int
	ShutdownTimeout int

	// Telemetry
	TracingEnabled   bool
	OTLPEndpoint     string
	TraceSampleRatio float64

	// Maintenance
	StaleSweepCron         string
	StaleProcessingMinutes int
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		MongoURI:    getEnv("MONGO_URI", "mongodb://localhost:27017"),
		DBName:      getEnv("DB_NAME", "pdf_query_system"),
		Port:        getEnv("PORT", "8000"),
		GinMode:     getEnv("GIN_MODE", "debug"),
		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "*")),
		MaxFileSize: getEnvInt64("MAX_FILE_SIZE", 52428800), // 50MB

		StorageProvider:     strings.ToLower(getEnv("STORAGE_PROVIDER", "cloudinary")),
		CloudinaryCloudName: getEnv("CLOUDINARY_CLOUD_NAME", ""),
		CloudinaryAPIKey:    getEnv("CLOUDINARY_API_KEY", ""),
		CloudinaryAPISecret: getEnv("CLOUDINARY_API_SECRET", ""),
		CloudinaryFolder:    getEnv("CLOUDINARY_FOLDER", "pdfs"),
		MinioEndpoint:       getEnv("MINIO_ENDPOINT", ""),
		MinioAccessKey:      getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey:      getEnv("MINIO_SECRET_KEY", ""),
		MinioBucket:         getEnv("MINIO_BUCKET", ""),

		GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),
		GeminiModel:     getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		GeminiTier:      getEnv("GEMINI_TIER", "free"),
		MaxContextChars: getEnvInt("MAX_CONTEXT_CHARS", 120000),

		RedisURL:       getEnv("REDIS_URL", ""),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisDB:        getEnvInt("REDIS_DB", 0),
		AnswerCacheTTL: getEnvInt("ANSWER_CACHE_TTL", 3600),

		RateLimitReqs:   getEnvInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow: getEnvInt("RATE_LIMIT_WINDOW", 60),

		AsyncProcessing: getEnvBool("ASYNC_PROCESSING", false),

		StartupTimeout:  getEnvInt("STARTUP_TIMEOUT", 30),
		ShutdownTimeout: getEnvInt("SHUTDOWN_TIMEOUT", 30),

		TracingEnabled:   getEnvBool("TRACING_ENABLED", false),
		OTLPEndpoint:     getEnv("OTLP_ENDPOINT", "localhost:4317"),
		TraceSampleRatio: getEnvFloat64("TRACE_SAMPLE_RATIO", 0.1),

		StaleSweepCron:         getEnv("STALE_SWEEP_CRON", "*/10 * * * *"),
		StaleProcessingMinutes: getEnvInt("STALE_PROCESSING_MINUTES", 30),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that would otherwise fail much later.
// Storage credentials are checked when the storage client is configured.
func (c *Config) Validate() error {
	if c.MongoURI == "" {
		return fmt.Errorf("MONGO_URI is required")
	}
	if c.DBName == "" {
		return fmt.Errorf("DB_NAME is required")
	}
	switch c.StorageProvider {
	case "cloudinary", "minio":
	default:
		return fmt.Errorf("unknown STORAGE_PROVIDER: %s", c.StorageProvider)
	}
	if c.StartupTimeout <= 0 || c.ShutdownTimeout <= 0 {
		return fmt.Errorf("STARTUP_TIMEOUT and SHUTDOWN_TIMEOUT must be positive")
	}
	if c.AsyncProcessing && c.RedisURL == "" {
		return fmt.Errorf("ASYNC_PROCESSING requires REDIS_URL")
	}
	return nil
}

func (c *Config) StartupTimeoutDuration() time.Duration {
	return time.Duration(c.StartupTimeout) * time.Second
}

func (c *Config) ShutdownTimeoutDuration() time.Duration {
	return time.Duration(c.ShutdownTimeout) * time.Second
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

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
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

func getEnvFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
