package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
	StoreRedis      = "redis"
)

type DatabaseOptions struct {
	URL      string `env:"DATABASE_URL"`
	Host     string `env:"DB_HOST" envDefault:"127.0.0.1"`
	Port     string `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER" envDefault:"ems"`
	Password string `env:"DB_PASSWORD" envDefault:"ems"`
	Name     string `env:"DB_NAME" envDefault:"ems"`
	SSLMode  string `env:"DB_SSLMODE" envDefault:"disable"`
	MaxConns int32  `env:"DB_MAX_CONNS" envDefault:"5"`
}

// ConnectionString prefers DATABASE_URL and otherwise builds one from the parts.
func (d DatabaseOptions) ConnectionString() string {
	if d.URL != "" {
		return d.URL
	}

	return "postgres://" + d.User + ":" + d.Password + "@" + d.Host + ":" + d.Port + "/" + d.Name + "?sslmode=" + d.SSLMode
}

type JWTOptions struct {
	Secret    string        `env:"JWT_SECRET" envDefault:"dev-secret-change-me"`
	AccessTTL time.Duration `env:"JWT_ACCESS_TTL" envDefault:"24h"`
}

type ThrottleOptions struct {
	Store        string        `env:"THROTTLE_STORE" envDefault:"memory"`
	MaxAttempts  int           `env:"THROTTLE_MAX_ATTEMPTS" envDefault:"5"`
	LockDuration time.Duration `env:"THROTTLE_LOCK_DURATION" envDefault:"15m"`
	ExemptEmails []string      `env:"THROTTLE_EXEMPT_EMAILS" envDefault:"admin@example.com,admin@initech.com" envSeparator:","`
}

type RateLimitOptions struct {
	// ulule formatted rate, e.g. 20-M
	Rate string `env:"RATE_LIMIT" envDefault:"20-M"`
	// per authenticated caller on employee and department writes; empty disables
	WriteRate string `env:"RATE_LIMIT_WRITES" envDefault:"120-M"`
	Store     string `env:"RATE_LIMIT_STORE" envDefault:"memory"`
}

type OpenTelemetryOptions struct {
	Enabled     bool   `env:"OTEL_ENABLED" envDefault:"false"`
	Endpoint    string `env:"OTEL_ENDPOINT" envDefault:"localhost:4317"`
	ServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"ems-api"`
}

type GuestOptions struct {
	Email    string `env:"GUEST_EMAIL" envDefault:"guest@demo.com"`
	Password string `env:"GUEST_PASSWORD" envDefault:"guest123"`
}

type Config struct {
	Env  string `env:"APP_ENV" envDefault:"dev"`
	Port int    `env:"PORT" envDefault:"8080"`

	// postgres or memory
	Storage        string `env:"STORAGE" envDefault:"postgres"`
	MigrateOnStart bool   `env:"MIGRATE_ON_START" envDefault:"false"`

	DB        DatabaseOptions
	JWT       JWTOptions
	Throttle  ThrottleOptions
	RateLimit RateLimitOptions
	Otel      OpenTelemetryOptions
	Guest     GuestOptions

	RedisURL       string   `env:"REDIS_URL"`
	CORSOrigins    []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"http://localhost:5173" envSeparator:","`
	MetricsEnabled bool     `env:"METRICS_ENABLED" envDefault:"true"`
	MaxBodyBytes   int64    `env:"MAX_BODY_BYTES" envDefault:"1048576"`
}

// Load reads .env and .env.local when present, then the process environment.
func Load() (Config, error) {
	if err := loadEnvFiles(".env", ".env.local"); err != nil {
		return Config{}, fmt.Errorf("load env files: %w", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	cfg.Storage = strings.ToLower(strings.TrimSpace(cfg.Storage))
	cfg.Throttle.Store = strings.ToLower(strings.TrimSpace(cfg.Throttle.Store))
	cfg.RateLimit.Store = strings.ToLower(strings.TrimSpace(cfg.RateLimit.Store))

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func loadEnvFiles(files ...string) error {
	existing := make([]string, 0, len(files))
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}

	if len(existing) == 0 {
		return nil
	}

	return godotenv.Load(existing...)
}

func (c Config) IsProd() bool {
	return c.Env == "prod" || c.Env == "production"
}

func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port)
	}

	if c.Storage != StoragePostgres && c.Storage != StorageMemory {
		return fmt.Errorf("STORAGE must be 'postgres' or 'memory', got '%s'", c.Storage)
	}

	for name, store := range map[string]string{
		"THROTTLE_STORE":   c.Throttle.Store,
		"RATE_LIMIT_STORE": c.RateLimit.Store,
	} {
		if store != StorageMemory && store != StoreRedis {
			return fmt.Errorf("%s must be 'memory' or 'redis', got '%s'", name, store)
		}
		if store == StoreRedis && c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when %s is 'redis'", name)
		}
	}

	if c.Throttle.MaxAttempts <= 0 {
		return fmt.Errorf("THROTTLE_MAX_ATTEMPTS must be positive, got %d", c.Throttle.MaxAttempts)
	}

	if c.Throttle.LockDuration <= 0 {
		return fmt.Errorf("THROTTLE_LOCK_DURATION must be positive, got %s", c.Throttle.LockDuration)
	}

	if c.JWT.AccessTTL <= 0 {
		return fmt.Errorf("JWT_ACCESS_TTL must be positive, got %s", c.JWT.AccessTTL)
	}

	if c.IsProd() && len(c.JWT.Secret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 bytes in production")
	}

	return nil
}

// NeedsRedis reports whether any component is configured to use Redis.
func (c Config) NeedsRedis() bool {
	return c.Throttle.Store == StoreRedis || c.RateLimit.Store == StoreRedis
}

func WithTimeout(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
}
