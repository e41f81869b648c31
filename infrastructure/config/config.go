// Package config loads process configuration from an optional YAML file and
// the environment. Environment variables always win.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Store backends
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendDynamoDB = "dynamodb"
)

// Metrics backends
const (
	MetricsPrometheus = "prometheus"
	MetricsCloudWatch = "cloudwatch"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress string   `yaml:"server_address"`
	Environment   string   `yaml:"environment"`
	MaxBodyBytes  int64    `yaml:"max_body_bytes"`
	CORSOrigins   []string `yaml:"cors_allowed_origins"`

	// Store configuration
	StoreBackend string `yaml:"store_backend"`
	SQLitePath   string `yaml:"sqlite_path"`
	SQLiteWAL    bool   `yaml:"sqlite_wal"`
	SQLiteSync   string `yaml:"sqlite_sync"`
	DatabaseURL  string `yaml:"database_url"`

	// AWS configuration
	AWSRegion     string `yaml:"aws_region"`
	TableName     string `yaml:"table_name"`
	GSI1IndexName string `yaml:"gsi1_index_name"`
	GSI2IndexName string `yaml:"gsi2_index_name"`
	EventBusName  string `yaml:"event_bus_name"`
	IsLambda      bool   `yaml:"-"`

	// Store resilience
	StoreTimeout        time.Duration `yaml:"store_timeout"`
	StoreRetryAttempts  int           `yaml:"store_retry_attempts"`
	BreakerFailureRatio float64       `yaml:"breaker_failure_ratio"`
	BreakerMinRequests  int           `yaml:"breaker_min_requests"`
	BreakerTimeout      time.Duration `yaml:"breaker_timeout"`

	// Logging
	LogLevel string `yaml:"log_level"`

	// Authentication
	JWTSecret     string        `yaml:"jwt_secret"`
	JWTIssuer     string        `yaml:"jwt_issuer"`
	JWTAudience   []string      `yaml:"jwt_audience"`
	TokenTTL      time.Duration `yaml:"token_ttl"`
	BcryptCost    int           `yaml:"bcrypt_cost"`
	AuthRateLimit int           `yaml:"auth_rate_limit"` // per IP per minute
	UserRateLimit int           `yaml:"user_rate_limit"` // per user per minute

	// Memory rules
	MaxImages         int   `yaml:"max_images"`
	MaxImageBytes     int   `yaml:"max_image_bytes"`
	UsernameCacheSize int64 `yaml:"username_cache_size"`

	// Feature flags
	EnableEvents   bool   `yaml:"enable_events"`
	EnableMetrics  bool   `yaml:"enable_metrics"`
	MetricsBackend string `yaml:"metrics_backend"`
	EnableTracing  bool   `yaml:"enable_tracing"`
}

func defaults() *Config {
	return &Config{
		ServerAddress: ":3000",
		Environment:   "development",
		MaxBodyBytes:  10 << 20,
		CORSOrigins:   []string{"*"},

		StoreBackend: BackendSQLite,
		SQLitePath:   "city_memory.db",
		SQLiteWAL:    true,
		SQLiteSync:   "normal",

		AWSRegion:     "us-west-2",
		TableName:     "city-memory",
		GSI1IndexName: "GSI1",
		GSI2IndexName: "GSI2",
		EventBusName:  "default",

		StoreTimeout:        5 * time.Second,
		StoreRetryAttempts:  3,
		BreakerFailureRatio: 0.6,
		BreakerMinRequests:  10,
		BreakerTimeout:      30 * time.Second,

		LogLevel: "info",

		JWTIssuer:     "city-memory",
		TokenTTL:      7 * 24 * time.Hour,
		BcryptCost:    10,
		AuthRateLimit: 20,
		UserRateLimit: 300,

		MaxImages:         10,
		MaxImageBytes:     5 << 20,
		UsernameCacheSize: 10000,

		EnableMetrics:  true,
		MetricsBackend: MetricsPrometheus,
	}
}

// LoadConfig loads defaults, then CONFIG_FILE when set, then the environment
func LoadConfig() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.loadEnv()

	// Validate required configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) loadEnv() {
	c.ServerAddress = getEnv("SERVER_ADDRESS", c.ServerAddress)
	if port := os.Getenv("PORT"); port != "" && os.Getenv("SERVER_ADDRESS") == "" {
		c.ServerAddress = ":" + port
	}
	c.Environment = getEnv("ENVIRONMENT", c.Environment)
	c.MaxBodyBytes = int64(getEnvInt("MAX_BODY_BYTES", int(c.MaxBodyBytes)))
	c.CORSOrigins = getEnvList("CORS_ALLOWED_ORIGINS", c.CORSOrigins)

	c.StoreBackend = strings.ToLower(getEnv("STORE_BACKEND", c.StoreBackend))
	c.SQLitePath = getEnv("SQLITE_PATH", c.SQLitePath)
	c.SQLiteWAL = getEnvBool("SQLITE_WAL", c.SQLiteWAL)
	c.SQLiteSync = getEnv("SQLITE_SYNC", c.SQLiteSync)
	c.DatabaseURL = getEnv("DATABASE_URL", c.DatabaseURL)

	c.AWSRegion = getEnv("AWS_REGION", c.AWSRegion)
	c.TableName = getEnv("TABLE_NAME", c.TableName)
	c.GSI1IndexName = getEnv("GSI1_INDEX_NAME", c.GSI1IndexName)
	c.GSI2IndexName = getEnv("GSI2_INDEX_NAME", c.GSI2IndexName)
	c.EventBusName = getEnv("EVENT_BUS_NAME", c.EventBusName)
	c.IsLambda = os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != ""

	c.StoreTimeout = getEnvDuration("STORE_TIMEOUT", c.StoreTimeout)
	c.StoreRetryAttempts = getEnvInt("STORE_RETRY_ATTEMPTS", c.StoreRetryAttempts)
	c.BreakerFailureRatio = getEnvFloat("BREAKER_FAILURE_RATIO", c.BreakerFailureRatio)
	c.BreakerMinRequests = getEnvInt("BREAKER_MIN_REQUESTS", c.BreakerMinRequests)
	c.BreakerTimeout = getEnvDuration("BREAKER_TIMEOUT", c.BreakerTimeout)

	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)

	c.JWTSecret = getEnv("JWT_SECRET", c.JWTSecret)
	c.JWTIssuer = getEnv("JWT_ISSUER", c.JWTIssuer)
	c.JWTAudience = getEnvList("JWT_AUDIENCE", c.JWTAudience)
	c.TokenTTL = getEnvDuration("TOKEN_TTL", c.TokenTTL)
	c.BcryptCost = getEnvInt("BCRYPT_COST", c.BcryptCost)
	c.AuthRateLimit = getEnvInt("AUTH_RATE_LIMIT", c.AuthRateLimit)
	c.UserRateLimit = getEnvInt("USER_RATE_LIMIT", c.UserRateLimit)

	c.MaxImages = getEnvInt("MAX_IMAGES", c.MaxImages)
	c.MaxImageBytes = getEnvInt("MAX_IMAGE_BYTES", c.MaxImageBytes)
	c.UsernameCacheSize = int64(getEnvInt("USERNAME_CACHE_SIZE", int(c.UsernameCacheSize)))

	c.EnableEvents = getEnvBool("ENABLE_EVENTS", c.EnableEvents)
	c.EnableMetrics = getEnvBool("ENABLE_METRICS", c.EnableMetrics)
	c.MetricsBackend = strings.ToLower(getEnv("METRICS_BACKEND", c.MetricsBackend))
	c.EnableTracing = getEnvBool("ENABLE_TRACING", c.EnableTracing)
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for the sqlite backend")
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres backend")
		}
	case BackendDynamoDB:
		if c.TableName == "" {
			return fmt.Errorf("TABLE_NAME is required for the dynamodb backend")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}

	switch c.MetricsBackend {
	case MetricsPrometheus, MetricsCloudWatch:
	default:
		return fmt.Errorf("unknown METRICS_BACKEND %q", c.MetricsBackend)
	}

	if c.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive")
	}
	if c.StoreTimeout <= 0 {
		return fmt.Errorf("STORE_TIMEOUT must be positive")
	}
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("MAX_BODY_BYTES must be positive")
	}

	if c.IsProduction() && c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required in production")
	}

	return nil
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("5s") or plain seconds
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

// getEnvList splits a comma separated variable
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
