package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends.
const (
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMemory   = "memory"
)

// Gateway modes.
const (
	GatewayHTTP = "http"
	GatewayMock = "mock"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Port          int
	Env           string
	JWTSecret     string
	EncryptionKey string
	CORSOrigins   []string

	StoreBackend  string
	DatabaseURL   string
	RedisURL      string
	RedisPrefix   string
	SnowflakeNode int64

	AdminEmails   []string
	AdminPassword string
	BrandName     string

	GatewayMode    string
	GatewayURL     string
	GatewayTimeout time.Duration

	PollAttempts      int
	PollInterval      time.Duration
	ReconcileInterval time.Duration
	SettlementMaxAge  time.Duration

	SentryDSN string
}

// LoadDotEnv reads a .env file (or the file named by DOTENV) if present.
// Variables already set in the environment win.
func LoadDotEnv() error {
	file := getEnv("DOTENV", ".env")
	if _, err := os.Stat(file); err != nil {
		return nil
	}
	return godotenv.Load(file)
}

// IsProduction reports whether ENV=production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	port, err := strconv.Atoi(getEnv("PORT", "4001"))
	if err != nil {
		return nil, fmt.Errorf("PORT must be a number: %w", err)
	}

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	encKey := getEnv("ENCRYPTION_KEY", "")
	if encKey == "" {
		return nil, fmt.Errorf("ENCRYPTION_KEY is required (must be exactly 32 bytes)")
	}
	if len(encKey) != 32 {
		return nil, fmt.Errorf("ENCRYPTION_KEY must be exactly 32 bytes, got %d", len(encKey))
	}

	cfg := &Config{
		Port:          port,
		Env:           getEnv("ENV", "development"),
		JWTSecret:     jwtSecret,
		EncryptionKey: encKey,
		CORSOrigins:   splitList(getEnv("CORS_ORIGINS", "http://localhost:3000")),
		StoreBackend:  getEnv("STORE_BACKEND", BackendPostgres),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		RedisURL:      getEnv("REDIS_URL", ""),
		RedisPrefix:   getEnv("REDIS_PREFIX", "dimpoz:"),
		AdminEmails:   splitList(strings.ToLower(getEnv("ADMIN_EMAILS", ""))),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),
		BrandName:     getEnv("BRAND_NAME", "DIMPOZ"),
		GatewayMode:   getEnv("GATEWAY_MODE", GatewayHTTP),
		GatewayURL:    getEnv("GATEWAY_URL", ""),
		SentryDSN:     getEnv("SENTRY_DSN", ""),
	}

	switch cfg.StoreBackend {
	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required")
		}
	case BackendRedis:
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("REDIS_URL is required when STORE_BACKEND=redis")
		}
	case BackendMemory:
	default:
		return nil, fmt.Errorf("STORE_BACKEND must be one of postgres, redis, memory")
	}

	switch cfg.GatewayMode {
	case GatewayHTTP:
		if cfg.GatewayURL == "" {
			return nil, fmt.Errorf("GATEWAY_URL is required")
		}
	case GatewayMock:
	default:
		return nil, fmt.Errorf("GATEWAY_MODE must be http or mock")
	}

	if cfg.SnowflakeNode, err = strconv.ParseInt(getEnv("SNOWFLAKE_NODE", "1"), 10, 64); err != nil {
		return nil, fmt.Errorf("SNOWFLAKE_NODE must be a number: %w", err)
	}
	if cfg.PollAttempts, err = strconv.Atoi(getEnv("POLL_ATTEMPTS", "30")); err != nil || cfg.PollAttempts < 1 {
		return nil, fmt.Errorf("POLL_ATTEMPTS must be a positive number")
	}

	durations := []struct {
		key      string
		fallback string
		dst      *time.Duration
	}{
		{"GATEWAY_TIMEOUT", "20s", &cfg.GatewayTimeout},
		{"POLL_INTERVAL", "3s", &cfg.PollInterval},
		{"RECONCILE_INTERVAL", "1m", &cfg.ReconcileInterval},
		{"SETTLEMENT_MAX_AGE", "24h", &cfg.SettlementMaxAge},
	}
	for _, d := range durations {
		v, err := time.ParseDuration(getEnv(d.key, d.fallback))
		if err != nil || v <= 0 {
			return nil, fmt.Errorf("%s must be a positive duration", d.key)
		}
		*d.dst = v
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
