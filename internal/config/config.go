package config

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

type Config struct {
	Env   string
	Port  int
	DBURL string

	// postgres | memory
	StoreDriver    string
	MigrationsPath string

	JWTSecret string
	JWTTTL    time.Duration

	TrialDuration  time.Duration
	SweepInterval  time.Duration
	SweepOnStartup bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	ChatChannel   string

	CORSOrigins  []string
	OTLPEndpoint string
	MaxBodyBytes int64

	SweeperHealthPort int
}

func Load() Config {
	// a missing .env is normal outside local dev
	_ = godotenv.Load()

	return Config{
		Env:               getEnv("APP_ENV", "dev"),
		Port:              getEnvInt("PORT", 5000),
		DBURL:             buildDBURL(),
		StoreDriver:       strings.ToLower(getEnv("STORE_DRIVER", StoreDriverPostgres)),
		MigrationsPath:    getEnv("MIGRATIONS_PATH", "migrations"),
		JWTSecret:         getEnv("JWT_SECRET", "dev-secret-change-me"),
		JWTTTL:            time.Duration(getEnvInt("JWT_TTL_MINUTES", 60)) * time.Minute,
		TrialDuration:     getEnvDuration("TRIAL_DURATION", 72*time.Hour),
		SweepInterval:     getEnvDuration("SWEEP_INTERVAL", time.Hour),
		SweepOnStartup:    getEnvBool("SWEEP_ON_STARTUP", true),
		RedisAddr:         getEnv("REDIS_ADDR", ""),
		RedisPassword:     getEnv("REDIS_PASSWORD", ""),
		RedisDB:           getEnvInt("REDIS_DB", 0),
		ChatChannel:       getEnv("CHAT_CHANNEL", "afterhours:chat"),
		CORSOrigins:       parseCSV(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000")),
		OTLPEndpoint:      getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		MaxBodyBytes:      int64(getEnvInt("MAX_BODY_BYTES", 10<<20)),
		SweeperHealthPort: getEnvInt("SWEEPER_HEALTH_PORT", 8081),
	}
}

func buildDBURL() string {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		return v
	}

	host := getEnv("DB_HOST", "127.0.0.1")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "afterhours")
	pass := getEnv("DB_PASSWORD", "afterhours")
	name := getEnv("DB_NAME", "afterhours")
	ssl := getEnv("DB_SSLMODE", "disable")

	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=" + ssl
}

// WithTimeout is kept for call sites without a request context (startup, worker loops).
func WithTimeout(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		num, err := strconv.Atoi(v)

		if err != nil {
			slog.Warn("invalid int env, using fallback", "key", key, "value", v, "fallback", fallback)
			return fallback
		}

		return num
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			slog.Warn("invalid bool env, using fallback", "key", key, "value", v, "fallback", fallback)
			return fallback
		}
		return b
	}
	return fallback
}

// accepts Go durations ("72h", "90s"); zero disables periodic jobs
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			slog.Warn("invalid duration env, using fallback", "key", key, "value", v, "fallback", fallback)
			return fallback
		}
		return d
	}
	return fallback
}

func parseCSV(input string) []string {
	parts := strings.Split(input, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
