package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Store backends.
const (
	StoreMemory    = "memory"
	StoreSQLite    = "sqlite"
	StorePostgREST = "postgrest"
)

// Lock backends.
const (
	LockLocal = "local"
	LockRedis = "redis"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port     int
	LogLevel string

	// Persistence
	StoreBackend string
	SQLitePath   string

	// PostgREST (Supabase or self-hosted)
	PostgRESTURL        string
	PostgRESTAnonKey    string
	PostgRESTServiceKey string

	// HTTP client
	HTTPTimeout time.Duration

	// Resilience
	MaxRetries     int
	InitialBackoff time.Duration
	MaxConcurrency int

	// Write serialisation
	LockBackend   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	LockTTL       time.Duration
	LockWait      time.Duration

	// Reports
	ReportCacheTTL   time.Duration
	BusinessTimezone string

	// Observability
	OTLPEndpoint   string
	TracingEnabled bool

	// Admin session
	AdminPassword  string
	JWTSecret      string
	JWTSessionTTL  time.Duration
	AllowedOrigins []string

	// Dev mode
	DevTools     bool // DEV_TOOLS=true exposes POST /api/dev/seed
	AuthDisabled bool // AUTH_DISABLED=true skips the admin session check
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		StoreBackend: strings.ToLower(getEnv("STORE_BACKEND", StoreSQLite)),
		SQLitePath:   getEnv("SQLITE_PATH", "./data/ledger.db"),

		PostgRESTURL:        getEnv("POSTGREST_URL", ""),
		PostgRESTAnonKey:    getEnv("POSTGREST_ANON_KEY", ""),
		PostgRESTServiceKey: getEnv("POSTGREST_SERVICE_KEY", ""),

		HTTPTimeout: getEnvDuration("HTTP_TIMEOUT", 10*time.Second),

		MaxRetries:     getEnvInt("MAX_RETRIES", 3),
		InitialBackoff: getEnvDuration("INITIAL_BACKOFF", 100*time.Millisecond),
		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 8),

		LockBackend:   strings.ToLower(getEnv("LOCK_BACKEND", LockLocal)),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		LockTTL:       getEnvDuration("LOCK_TTL", 30*time.Second),
		LockWait:      getEnvDuration("LOCK_WAIT", 5*time.Second),

		ReportCacheTTL:   getEnvDuration("REPORT_CACHE_TTL", 30*time.Second),
		BusinessTimezone: getEnv("BUSINESS_TIMEZONE", "Africa/Cairo"),

		OTLPEndpoint:   getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		TracingEnabled: getEnvBool("TRACING_ENABLED", false),

		AdminPassword:  getEnv("ADMIN_PASSWORD", ""),
		JWTSecret:      getEnv("JWT_SECRET", ""),
		JWTSessionTTL:  getEnvDuration("JWT_SESSION_TTL", 7*24*time.Hour),
		AllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),

		DevTools:     getEnvBool("DEV_TOOLS", false),
		AuthDisabled: getEnvBool("AUTH_DISABLED", false),
	}
}

// Location resolves BusinessTimezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.BusinessTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
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

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
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

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
