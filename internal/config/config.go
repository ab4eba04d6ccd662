package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds every runtime setting of the service.
type Config struct {
	Port string

	DBDriver    string
	DBPath      string
	DatabaseURL string
	SeedPath    string

	RedisAddr         string
	RedisStreamPrefix string
	RouteCacheTTL     time.Duration

	RegistryTimeout    time.Duration
	QueueCapacity      int
	StoreRetryAttempts int
	StoreRetryBackoff  time.Duration
	RetryMaxBackoff    time.Duration
	QueueIdleTimeout   time.Duration
	RevalidateInterval time.Duration
	RealtimeSpeedLimit float64
	CorridorWidthKm    float64

	JWTSecret   string
	CORSOrigins []string

	LogLevel  string
	LogFormat string
}

var v = newViper()

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("PORT", "8080")
	v.SetDefault("DB_DRIVER", "sqlite")
	v.SetDefault("DB_PATH", "data/app.db")
	v.SetDefault("SEED_PATH", "data/seeds/reference.json")
	v.SetDefault("REDIS_STREAM_PREFIX", "route-audit")
	v.SetDefault("ROUTE_CACHE_TTL", "1h")
	v.SetDefault("REGISTRY_TIMEOUT", "2s")
	v.SetDefault("QUEUE_CAPACITY", 256)
	v.SetDefault("STORE_RETRY_ATTEMPTS", 3)
	v.SetDefault("STORE_RETRY_BACKOFF", "100ms")
	v.SetDefault("RETRY_MAX_BACKOFF", "30s")
	v.SetDefault("QUEUE_IDLE_TIMEOUT", "10m")
	v.SetDefault("REVALIDATE_INTERVAL", "15m")
	v.SetDefault("REALTIME_SPEED_LIMIT_KMH", 80.0)
	v.SetDefault("CORRIDOR_WIDTH_KM", 2.0)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	return v
}

// Load reads .env (if present), an optional CONFIG_FILE and the environment.
func Load() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	if path := strings.TrimSpace(v.GetString("CONFIG_FILE")); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("load config: read %q: %w", path, err)
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Port:               v.GetString("PORT"),
		DBDriver:           strings.ToLower(v.GetString("DB_DRIVER")),
		DBPath:             v.GetString("DB_PATH"),
		DatabaseURL:        v.GetString("DATABASE_URL"),
		SeedPath:           v.GetString("SEED_PATH"),
		RedisAddr:          v.GetString("REDIS_ADDR"),
		RedisStreamPrefix:  v.GetString("REDIS_STREAM_PREFIX"),
		RouteCacheTTL:      v.GetDuration("ROUTE_CACHE_TTL"),
		RegistryTimeout:    v.GetDuration("REGISTRY_TIMEOUT"),
		QueueCapacity:      v.GetInt("QUEUE_CAPACITY"),
		StoreRetryAttempts: v.GetInt("STORE_RETRY_ATTEMPTS"),
		StoreRetryBackoff:  v.GetDuration("STORE_RETRY_BACKOFF"),
		RetryMaxBackoff:    v.GetDuration("RETRY_MAX_BACKOFF"),
		QueueIdleTimeout:   v.GetDuration("QUEUE_IDLE_TIMEOUT"),
		RevalidateInterval: v.GetDuration("REVALIDATE_INTERVAL"),
		RealtimeSpeedLimit: v.GetFloat64("REALTIME_SPEED_LIMIT_KMH"),
		CorridorWidthKm:    v.GetFloat64("CORRIDOR_WIDTH_KM"),
		JWTSecret:          v.GetString("JWT_SECRET"),
		CORSOrigins:        splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		LogLevel:           v.GetString("LOG_LEVEL"),
		LogFormat:          v.GetString("LOG_FORMAT"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// splitList parses a comma separated setting, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks that the configuration values are usable.
func (c *Config) Validate() error {
	switch c.DBDriver {
	case "sqlite":
		if strings.TrimSpace(c.DBPath) == "" {
			return fmt.Errorf("DB_PATH is required for sqlite")
		}
	case "pgx":
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return fmt.Errorf("DATABASE_URL is required for pgx")
		}
	default:
		return fmt.Errorf("DB_DRIVER must be sqlite or pgx, got %q", c.DBDriver)
	}

	if c.RegistryTimeout <= 0 {
		return fmt.Errorf("REGISTRY_TIMEOUT must be positive, got %s", c.RegistryTimeout)
	}
	if c.QueueCapacity < 1 {
		return fmt.Errorf("QUEUE_CAPACITY must be at least 1, got %d", c.QueueCapacity)
	}
	if c.StoreRetryAttempts < 1 {
		return fmt.Errorf("STORE_RETRY_ATTEMPTS must be at least 1, got %d", c.StoreRetryAttempts)
	}
	if c.RetryMaxBackoff < c.StoreRetryBackoff {
		return fmt.Errorf("RETRY_MAX_BACKOFF must not be below STORE_RETRY_BACKOFF, got %s", c.RetryMaxBackoff)
	}
	if c.RealtimeSpeedLimit <= 0 {
		return fmt.Errorf("REALTIME_SPEED_LIMIT_KMH must be positive, got %v", c.RealtimeSpeedLimit)
	}
	if c.CorridorWidthKm <= 0 {
		return fmt.Errorf("CORRIDOR_WIDTH_KM must be positive, got %v", c.CorridorWidthKm)
	}
	return nil
}
