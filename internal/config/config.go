package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures runtime configuration for the API service and the CLI.
type Config struct {
	HTTP      HTTPConfig
	Database  DatabaseConfig
	Kafka     KafkaConfig
	Redis     RedisConfig
	Telemetry TelemetryConfig
	Service   ServiceConfig
	Orders    OrdersConfig
}

type HTTPConfig struct {
	Port          int
	MetricsPath   string
	ShutdownGrace int
}

type DatabaseConfig struct {
	URL             string
	AutoMigrate     bool
	MigrationsPath  string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	IsolationLevel  string
}

type KafkaConfig struct {
	Brokers      []string
	Topic        string
	WriteTimeout time.Duration
}

type RedisConfig struct {
	URL string
}

type TelemetryConfig struct {
	LogLevel         string
	OTelEndpoint     string
	EnableTracing    bool
	EnableMetrics    bool
	EnablePrometheus bool
	SampleRate       float64
}

type ServiceConfig struct {
	Name        string
	Version     string
	Environment string
}

type OrdersConfig struct {
	PlacementMaxAttempts int
	IdempotencyBackend   string
	IdempotencyTTL       time.Duration
}

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

var (
	ErrInvalidPort               = errors.New("http port must be between 1 and 65535")
	ErrInvalidMaxAttempts        = errors.New("placement max attempts must be at least 1")
	ErrInvalidIdempotencyBackend = errors.New("idempotency backend must be one of memory, postgres, redis")
	ErrMissingRedisURL           = errors.New("redis url is required for the redis idempotency backend")
	ErrInvalidIsolationLevel     = errors.New("isolation level must be one of read committed, repeatable read, serializable")
)

// Environment variables for each key. Keys double as config file paths.
var envBindings = map[string]string{
	"config":                        "ORDERS_CONFIG_FILE",
	"http.port":                     "API_HTTP_PORT",
	"http.metrics_path":             "API_METRICS_PATH",
	"http.shutdown_grace":           "API_SHUTDOWN_GRACE_SECONDS",
	"database.url":                  "DATABASE_URL",
	"database.auto_migrate":         "AUTO_MIGRATE",
	"database.migrations_path":      "MIGRATIONS_PATH",
	"database.max_conns":            "DB_MAX_CONNS",
	"database.min_conns":            "DB_MIN_CONNS",
	"database.max_conn_lifetime":    "DB_MAX_CONN_LIFETIME",
	"database.isolation_level":      "ORDERS_ISOLATION_LEVEL",
	"database.host":                 "DB_HOST",
	"database.port":                 "DB_PORT",
	"database.user":                 "DB_USER",
	"database.password":             "DB_PASSWORD",
	"database.name":                 "DB_NAME",
	"database.sslmode":              "DB_SSLMODE",
	"kafka.brokers":                 "KAFKA_BROKERS",
	"kafka.topic":                   "KAFKA_ORDERS_TOPIC",
	"kafka.write_timeout":           "KAFKA_WRITE_TIMEOUT",
	"redis.url":                     "REDIS_URL",
	"telemetry.log_level":           "LOG_LEVEL",
	"telemetry.otel_endpoint":       "OTEL_EXPORTER_OTLP_ENDPOINT",
	"telemetry.enable_tracing":      "OTEL_ENABLE_TRACING",
	"telemetry.enable_metrics":      "OTEL_ENABLE_METRICS",
	"telemetry.enable_prometheus":   "PROMETHEUS_ENABLED",
	"telemetry.sample_rate":         "OTEL_SAMPLE_RATE",
	"service.name":                  "API_SERVICE_NAME",
	"service.version":               "SERVICE_VERSION",
	"service.environment":           "ENVIRONMENT",
	"orders.placement_max_attempts": "ORDERS_PLACEMENT_MAX_ATTEMPTS",
	"orders.idempotency_backend":    "ORDERS_IDEMPOTENCY_BACKEND",
	"orders.idempotency_ttl":        "ORDERS_IDEMPOTENCY_TTL",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.metrics_path", "/metrics")
	v.SetDefault("http.shutdown_grace", 15)

	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("database.migrations_path", "migrations")
	v.SetDefault("database.max_conns", 25)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.max_conn_lifetime", 5*time.Minute)
	v.SetDefault("database.isolation_level", "read committed")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.name", "orders")
	v.SetDefault("database.sslmode", "disable")

	v.SetDefault("kafka.topic", "orders.placed")
	v.SetDefault("kafka.write_timeout", 10*time.Second)

	v.SetDefault("telemetry.log_level", "info")
	v.SetDefault("telemetry.enable_tracing", true)
	v.SetDefault("telemetry.enable_metrics", true)
	v.SetDefault("telemetry.enable_prometheus", true)
	v.SetDefault("telemetry.sample_rate", 1.0)

	v.SetDefault("service.name", "orders-api")
	v.SetDefault("service.version", "0.1.0")
	v.SetDefault("service.environment", "development")

	v.SetDefault("orders.placement_max_attempts", 3)
	v.SetDefault("orders.idempotency_backend", BackendPostgres)
	v.SetDefault("orders.idempotency_ttl", 24*time.Hour)
}

// Load reads configuration from environment variables and an optional config
// file, applying defaults when needed.
func Load() (*Config, error) {
	return FromViper(viper.New())
}

// FromViper builds a Config from v. Values already set on v (for example
// bound command line flags) take precedence over the environment.
func FromViper(v *viper.Viper) (*Config, error) {
	setDefaults(v)
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	if file := v.GetString("config"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", file, err)
		}
	}

	cfg := &Config{
		HTTP: HTTPConfig{
			Port:          v.GetInt("http.port"),
			MetricsPath:   v.GetString("http.metrics_path"),
			ShutdownGrace: v.GetInt("http.shutdown_grace"),
		},
		Database: DatabaseConfig{
			URL:             v.GetString("database.url"),
			AutoMigrate:     v.GetBool("database.auto_migrate"),
			MigrationsPath:  v.GetString("database.migrations_path"),
			MaxConns:        v.GetInt32("database.max_conns"),
			MinConns:        v.GetInt32("database.min_conns"),
			MaxConnLifetime: v.GetDuration("database.max_conn_lifetime"),
			IsolationLevel:  normalizeIsolationLevel(v.GetString("database.isolation_level")),
		},
		Kafka: KafkaConfig{
			Brokers:      splitList(v.GetString("kafka.brokers")),
			Topic:        v.GetString("kafka.topic"),
			WriteTimeout: v.GetDuration("kafka.write_timeout"),
		},
		Redis: RedisConfig{
			URL: v.GetString("redis.url"),
		},
		Telemetry: TelemetryConfig{
			LogLevel:         v.GetString("telemetry.log_level"),
			OTelEndpoint:     v.GetString("telemetry.otel_endpoint"),
			EnableTracing:    v.GetBool("telemetry.enable_tracing"),
			EnableMetrics:    v.GetBool("telemetry.enable_metrics"),
			EnablePrometheus: v.GetBool("telemetry.enable_prometheus"),
			SampleRate:       v.GetFloat64("telemetry.sample_rate"),
		},
		Service: ServiceConfig{
			Name:        v.GetString("service.name"),
			Version:     v.GetString("service.version"),
			Environment: v.GetString("service.environment"),
		},
		Orders: OrdersConfig{
			PlacementMaxAttempts: v.GetInt("orders.placement_max_attempts"),
			IdempotencyBackend:   strings.ToLower(strings.TrimSpace(v.GetString("orders.idempotency_backend"))),
			IdempotencyTTL:       v.GetDuration("orders.idempotency_ttl"),
		},
	}

	if cfg.Database.URL == "" {
		cfg.Database.URL = buildDatabaseURL(v)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.HTTP.Port < 1 || c.HTTP.Port > 65535 {
		return fmt.Errorf("%w: got %d", ErrInvalidPort, c.HTTP.Port)
	}

	switch c.Database.IsolationLevel {
	case "read committed", "repeatable read", "serializable":
	default:
		return fmt.Errorf("%w: got %q", ErrInvalidIsolationLevel, c.Database.IsolationLevel)
	}

	if c.Orders.PlacementMaxAttempts < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidMaxAttempts, c.Orders.PlacementMaxAttempts)
	}

	switch c.Orders.IdempotencyBackend {
	case BackendMemory, BackendPostgres:
	case BackendRedis:
		if c.Redis.URL == "" {
			return ErrMissingRedisURL
		}
	default:
		return fmt.Errorf("%w: got %q", ErrInvalidIdempotencyBackend, c.Orders.IdempotencyBackend)
	}

	return nil
}

func buildDatabaseURL(v *viper.Viper) string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		v.GetString("database.user"),
		v.GetString("database.password"),
		v.GetString("database.host"),
		v.GetString("database.port"),
		v.GetString("database.name"),
		v.GetString("database.sslmode"),
	)
}

func normalizeIsolationLevel(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer("_", " ", "-", " ").Replace(s)
}

func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
