package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds all application configuration
type Config struct {
	Env         string `validate:"oneof=development staging production test"`
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Geolocation GeolocationConfig
	Search      SearchConfig
	Session     SessionConfig
	OTEL        OTELConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host           string   `validate:"required"`
	Port           int      `validate:"min=1,max=65535"`
	AllowedOrigins []string `validate:"min=1"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Enabled  bool
	Host     string
	Port     int `validate:"min=1,max=65535"`
	User     string
	Password string
	Database string
	SSLMode  string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int `validate:"min=1,max=65535"`
	Password string
	DB       int `validate:"min=0"`
}

// GeolocationConfig holds geocoding and places provider configuration
type GeolocationConfig struct {
	Provider                string  `validate:"oneof=mock google"`
	APIKey                  string
	BaseURL                 string  `validate:"omitempty,url"`
	RequestsPerSecond       float64 `validate:"gt=0"`
	Burst                   int     `validate:"min=1"`
	BreakerFailureThreshold uint32  `validate:"min=1"`
	BreakerOpenTimeout      time.Duration
	HTTPTimeout             time.Duration `validate:"gt=0"`
}

// SearchConfig holds the search-result acquisition tuning knobs
type SearchConfig struct {
	CacheTTL           time.Duration `validate:"gt=0"`
	DebounceWindow     time.Duration `validate:"gte=0"`
	MaxRadiusKm        float64       `validate:"gt=0"`
	MaxResults         int           `validate:"min=1,max=20"`
	ProviderTimeout    time.Duration `validate:"gt=0"`
	HistoryLimit       int           `validate:"min=1"`
	HistoryDedupWindow time.Duration `validate:"gte=0"`
}

// SessionConfig holds search session lifecycle configuration
type SessionConfig struct {
	IdleTTL       time.Duration `validate:"gt=0"`
	LastSearchTTL time.Duration `validate:"gte=0"`
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Enabled        bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Env: getEnv("APP_ENV", "development"),
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           getEnvAsInt("SERVER_PORT", 8080),
			AllowedOrigins: getEnvAsList("ALLOWED_ORIGINS", []string{"*"}),
		},
		Database: DatabaseConfig{
			Enabled:  getEnvAsBool("DB_ENABLED", true),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "starmap"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Geolocation: GeolocationConfig{
			Provider:                getEnv("GEOLOCATION_PROVIDER", "mock"),
			APIKey:                  getEnv("GEOLOCATION_API_KEY", ""),
			BaseURL:                 getEnv("GEOLOCATION_BASE_URL", ""),
			RequestsPerSecond:       getEnvAsFloat("GEOLOCATION_RPS", 5),
			Burst:                   getEnvAsInt("GEOLOCATION_BURST", 2),
			BreakerFailureThreshold: uint32(getEnvAsInt("GEOLOCATION_BREAKER_FAILURES", 5)),
			BreakerOpenTimeout:      getEnvAsDuration("GEOLOCATION_BREAKER_TIMEOUT", 30*time.Second),
			HTTPTimeout:             getEnvAsDuration("GEOLOCATION_HTTP_TIMEOUT", 8*time.Second),
		},
		Search: SearchConfig{
			CacheTTL:           getEnvAsDuration("SEARCH_CACHE_TTL", 10*time.Minute),
			DebounceWindow:     getEnvAsDuration("SEARCH_DEBOUNCE_WINDOW", time.Second),
			MaxRadiusKm:        getEnvAsFloat("SEARCH_MAX_RADIUS_KM", 10),
			MaxResults:         getEnvAsInt("SEARCH_MAX_RESULTS", 15),
			ProviderTimeout:    getEnvAsDuration("SEARCH_PROVIDER_TIMEOUT", 10*time.Second),
			HistoryLimit:       getEnvAsInt("SEARCH_HISTORY_LIMIT", 50),
			HistoryDedupWindow: getEnvAsDuration("SEARCH_HISTORY_DEDUP_WINDOW", 5*time.Minute),
		},
		Session: SessionConfig{
			IdleTTL:       getEnvAsDuration("SESSION_IDLE_TTL", 2*time.Hour),
			LastSearchTTL: getEnvAsDuration("SESSION_LAST_SEARCH_TTL", 30*24*time.Hour),
		},
		OTEL: OTELConfig{
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "starmap"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
			Endpoint:       getEnv("OTEL_ENDPOINT", ""),
			Enabled:        getEnvAsBool("OTEL_ENABLED", false),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration against its struct tags
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Addr returns the HTTP listen address
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
