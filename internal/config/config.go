package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the full application configuration, loaded from the
// environment with development-friendly defaults.
type Config struct {
	Environment string // "production" or "development"
	Port        int
	BaseDomain  string // apex domain; the leftmost host label is the tenant subdomain

	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JWTSecret      string
	JWKSEndpoint   string // optional; enables RS256 verification for api_user credentials
	AccessTokenTTL time.Duration
	RefreshTTL     time.Duration

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioUseSSL    bool
	AuditBucket    string

	AuditRetention    time.Duration // entries older than this are archived off the database
	AuditArchiveBatch int

	StoreTimeout time.Duration
	RateLimits   RateLimitConfig
}

// RateLimitConfig holds every tier ceiling so new ceilings are configuration,
// not code changes.
type RateLimitConfig struct {
	GlobalCeiling int
	GlobalWindow  time.Duration

	ModuleCeilings map[string]int // module code -> ceiling per ModuleWindow
	ModuleWindow   time.Duration

	RoleCeilings map[string]int // role -> ceiling per RoleWindow
	RoleWindow   time.Duration

	OperationCeilings map[string]int // operation class -> ceiling per OperationWindow
	OperationWindow   time.Duration

	GlobalFailOpen bool // global IP tier may be configured fail-open
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{
		Environment:    getEnv("APP_ENV", "development"),
		Port:           getEnvInt("PORT", 8080),
		BaseDomain:     getEnv("BASE_DOMAIN", "gatekit.local"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisAddr:      getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		RedisDB:        getEnvInt("REDIS_DB", 0),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		JWKSEndpoint:   os.Getenv("JWKS_ENDPOINT"),
		AccessTokenTTL: getEnvDuration("ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTTL:     getEnvDuration("REFRESH_TOKEN_TTL", 720*time.Hour),
		MinioEndpoint:  getEnv("MINIO_ENDPOINT", "localhost:9000"),
		MinioAccessKey: getEnv("MINIO_ACCESS_KEY", "minioadmin"),
		MinioSecretKey: getEnv("MINIO_SECRET_KEY", "minioadmin"),
		MinioUseSSL:    os.Getenv("MINIO_USE_SSL") == "true",
		AuditBucket:    getEnv("AUDIT_BUCKET", "gatekit-audit-archive"),

		AuditRetention:    getEnvDuration("AUDIT_RETENTION", 90*24*time.Hour),
		AuditArchiveBatch: getEnvInt("AUDIT_ARCHIVE_BATCH", 1000),

		StoreTimeout:   getEnvDuration("STORE_TIMEOUT", 2*time.Second),
		RateLimits:     DefaultRateLimits(),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}
	if cfg.JWTSecret == "" && cfg.IsProduction() {
		return nil, fmt.Errorf("JWT_SECRET environment variable is required in production")
	}

	if v := getEnvInt("RATE_GLOBAL_CEILING", 0); v > 0 {
		cfg.RateLimits.GlobalCeiling = v
	}
	cfg.RateLimits.GlobalFailOpen = os.Getenv("RATE_GLOBAL_FAIL_OPEN") == "true"

	return cfg, nil
}

// DefaultRateLimits returns the stock tier ceilings. The global tier is
// sized to tolerate shared-NAT offices; auth is strict, pos generous.
func DefaultRateLimits() RateLimitConfig {
	return RateLimitConfig{
		GlobalCeiling: 1000,
		GlobalWindow:  15 * time.Minute,
		ModuleCeilings: map[string]int{
			"auth":    5,
			"core":    100,
			"wms":     150,
			"pos":     300,
			"reports": 30,
		},
		ModuleWindow: time.Minute,
		RoleCeilings: map[string]int{
			"super_admin":  600,
			"tenant_admin": 300,
			"module_admin": 200,
			"user":         120,
			"readonly":     60,
			"api_user":     240,
		},
		RoleWindow: time.Minute,
		OperationCeilings: map[string]int{
			"bulk":   10,
			"upload": 20,
			"report": 15,
		},
		OperationWindow: time.Minute,
	}
}

// IsProduction reports whether the production posture is active.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
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
