package config

import (
	"os"
	"time"
)

type Config struct {
	Port        string
	Environment string
	DatabaseURL string
	TablePrefix string
	JWKSURL     string
	RedisURL    string // empty disables stream resumption
	CORSOrigins string
	// Provider configuration
	OpenAIAPIKey  string
	OpenAIBaseURL string
	DefaultModel  string
	TitleModel    string
	PricingFile   string
	// Stream resumption tuning
	ResumeFreshness time.Duration
	StreamRetention time.Duration
	// Debug flags
	Debug bool // Enables DEBUG features like SSE keepalive logging
	// LogDir, when set, mirrors logs to timestamped files in that directory
	LogDir string
}

func Load() *Config {
	env := getEnv("ENVIRONMENT", "dev")

	return &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: env,
		DatabaseURL: getEnv("DATABASE_URL", ""),
		TablePrefix: getTablePrefix(env),
		JWKSURL:     getEnv("JWKS_URL", ""),
		RedisURL:    getEnv("REDIS_URL", ""),
		CORSOrigins: getEnv("CORS_ORIGINS", "http://localhost:3000"),
		// Provider configuration
		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", ""),
		DefaultModel:  getEnv("DEFAULT_MODEL", "gpt-4o-mini"),
		TitleModel:    getEnv("TITLE_MODEL", "gpt-4o-mini"),
		PricingFile:   getEnv("PRICING_FILE", ""),
		// Stream resumption tuning
		ResumeFreshness: getDuration("RESUME_FRESHNESS", 15*time.Second),
		StreamRetention: getDuration("STREAM_RETENTION", 60*time.Second),
		// Debug flags - default to true in dev/test, false in production
		Debug:  getEnv("DEBUG", getDefaultDebug(env)) == "true",
		LogDir: getEnv("LOG_DIR", ""),
	}
}

// getDefaultDebug returns the default debug setting based on environment
func getDefaultDebug(env string) string {
	if env == "prod" {
		return "false"
	}
	return "true" // Enable DEBUG in dev/test by default
}

// getTablePrefix returns the table prefix based on environment
func getTablePrefix(env string) string {
	// Allow manual override via TABLE_PREFIX env var
	if prefix := os.Getenv("TABLE_PREFIX"); prefix != "" {
		return prefix
	}

	// Auto-generate based on environment
	switch env {
	case "prod":
		return "prod_"
	case "test":
		return "test_"
	default:
		return "dev_"
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}
