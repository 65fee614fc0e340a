package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port     int
	LogLevel string

	// Persistence: "memory" for the in-process store, "postgres" for GORM.
	StoreDriver string
	PostgresDSN string

	// External services
	RailAPIURL string
	KYCAPIURL  string

	// HTTP client
	HTTPTimeout time.Duration

	// Resilience
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	MaxConcurrency int

	// Cache
	KYCCacheTTL time.Duration

	// Engine thresholds. Decimal strings, parsed at wiring time.
	AlertThreshold     string
	AutoApproveCeiling string

	// Audit retention
	AuditSweepInterval time.Duration
	AuditArchiveAge    time.Duration

	// Observability
	OTLPEndpoint string

	// JWT / Auth
	JWTSecret    string
	JWTAccessTTL time.Duration

	// Operators maps username to bcrypt hash, parsed from a
	// comma-separated list of username:hash pairs. Empty means the dev
	// fallback operator is seeded at startup.
	Operators map[string]string
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		StoreDriver: getEnv("STORE_DRIVER", "memory"),
		PostgresDSN: getEnv("POSTGRES_DSN", ""),

		RailAPIURL: getEnv("RAIL_API_URL", "http://localhost:8091"),
		KYCAPIURL:  getEnv("KYC_API_URL", "http://localhost:8092"),

		HTTPTimeout: getEnvDuration("HTTP_TIMEOUT", 10*time.Second),

		MaxRetries:     getEnvInt("MAX_RETRIES", 3),
		InitialBackoff: getEnvDuration("INITIAL_BACKOFF", 100*time.Millisecond),
		MaxBackoff:     getEnvDuration("MAX_BACKOFF", 5*time.Second),
		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 8),

		KYCCacheTTL: getEnvDuration("KYC_CACHE_TTL", 5*time.Minute),

		AlertThreshold:     getEnv("ALERT_THRESHOLD", "10000"),
		AutoApproveCeiling: getEnv("AUTO_APPROVE_CEILING", "100000"),

		AuditSweepInterval: getEnvDuration("AUDIT_SWEEP_INTERVAL", 24*time.Hour),
		AuditArchiveAge:    getEnvDuration("AUDIT_ARCHIVE_AGE", 365*24*time.Hour),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),

		JWTSecret:    getEnv("JWT_SECRET", "corebank-default-dev-secret-change-me"),
		JWTAccessTTL: getEnvDuration("JWT_ACCESS_TTL", 15*time.Minute),

		Operators: parseOperators(getEnv("OPERATORS", "")),
	}
}

// parseOperators splits "alice:$2a$...,bob:$2a$..." into a credential map.
// Malformed pairs are skipped.
func parseOperators(raw string) map[string]string {
	out := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, ":", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			continue
		}
		out[parts[0]] = parts[1]
	}
	return out
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
