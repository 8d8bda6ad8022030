package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Workflow     WorkflowConfig
	Notification NotificationConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values. An empty DSN selects the in-memory store.
// Saves run detached from request cancellation, so StatementTimeoutMs is what
// bounds a stuck write.
type PostgresConfig struct {
	DSN                string
	ApplicationName    string
	MaxConns           int32
	MinConns           int32
	RunMigrations      bool
	ConnMaxIdleSec     int32
	ConnMaxLifeSec     int32
	HealthCheckSec     int32
	ConnectTimeoutSec  int32
	StatementTimeoutMs int32
}

// RedisConfig holds Redis connection values for the event relay.
type RedisConfig struct {
	Enabled      bool
	Addr         string
	Password     string
	DB           int
	EventStream  string
	StreamMaxLen int64
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines bearer token parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
}

// WorkflowConfig tunes the background SLA sweep.
type WorkflowConfig struct {
	SweepIntervalSeconds int
	ExpireRenewals       bool
}

// NotificationConfig controls the built-in subscribers.
type NotificationConfig struct {
	AuditLog         bool
	RelayMinPriority string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))
	healthCheck := int32(getEnvAsInt("POSTGRES_HEALTH_CHECK_SECONDS", 30))
	connectTimeout := int32(getEnvAsInt("POSTGRES_CONNECT_TIMEOUT_SECONDS", 5))
	statementTimeout := int32(getEnvAsInt("POSTGRES_STATEMENT_TIMEOUT_MS", 5000))
	appName := getEnv("APP_NAME", "permit-lifecycle-service")

	cfg := &Config{
		App: AppConfig{
			Name:                  appName,
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:                os.Getenv("POSTGRES_DSN"),
			ApplicationName:    appName,
			MaxConns:           maxConns,
			MinConns:           minConns,
			RunMigrations:      runMigrations,
			ConnMaxIdleSec:     connMaxIdle,
			ConnMaxLifeSec:     connMaxLife,
			HealthCheckSec:     healthCheck,
			ConnectTimeoutSec:  connectTimeout,
			StatementTimeoutMs: statementTimeout,
		},
		Redis: RedisConfig{
			Enabled:      getEnvAsBool("REDIS_ENABLED", false),
			Addr:         getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:     os.Getenv("REDIS_PASSWORD"),
			DB:           redisDB,
			EventStream:  getEnv("REDIS_EVENT_STREAM", "lifecycle:events"),
			StreamMaxLen: int64(getEnvAsInt("REDIS_EVENT_STREAM_MAXLEN", 10000)),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
		},
		Workflow: WorkflowConfig{
			SweepIntervalSeconds: getEnvAsInt("WORKFLOW_SWEEP_INTERVAL_SECONDS", 60),
			ExpireRenewals:       getEnvAsBool("WORKFLOW_EXPIRE_RENEWALS", true),
		},
		Notification: NotificationConfig{
			AuditLog:         getEnvAsBool("NOTIFY_AUDIT_LOG", true),
			RelayMinPriority: getEnv("NOTIFY_RELAY_MIN_PRIORITY", "LOW"),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// SweepInterval returns the sweep period; zero disables the sweeper.
func (w WorkflowConfig) SweepInterval() time.Duration {
	if w.SweepIntervalSeconds <= 0 {
		return 0
	}
	return time.Duration(w.SweepIntervalSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
