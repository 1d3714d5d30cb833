package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the application
type Config struct {
	LogLevel  string
	Server    ServerConfig
	Database  DatabaseConfig
	Store     StoreConfig
	JWT       JWTConfig
	Storage   StorageConfig
	Worker    WorkerConfig
	Redis     RedisConfig
	Platform  PlatformConfig
	LLM       LLMConfig
	Secrets   SecretsConfig
	Tasks     TasksConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Host        string
	Port        int
	PublicURL   string
	CORSOrigins []string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

// DSN returns the postgres connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s",
		d.Host, d.User, d.Password, d.Name, d.Port, d.SSLMode)
}

type StoreConfig struct {
	Provider string // postgres, memory
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
}

type StorageConfig struct {
	Provider string // local, s3
	BasePath string
	S3       S3Config
}

type S3Config struct {
	BucketName string `env:"S3_BUCKET_NAME"`
	Endpoint   string `env:"S3_ENDPOINT"`
	Region     string `env:"S3_REGION"`
	AccessKey  string `env:"S3_ACCESS_KEY"`
	SecretKey  string `env:"S3_SECRET_KEY"`
}

type WorkerConfig struct {
	Concurrency int
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	Username string
	DB       int
}

// PlatformConfig configures the website platform gateway.
type PlatformConfig struct {
	BaseURL           string
	Token             string
	APIVersion        string
	MaxRetries        int
	RetryBaseDelay    time.Duration
	RetryMaxDelay     time.Duration
	RequestsPerMinute int
	Timeout           time.Duration
}

// LLMConfig configures the completion gateway.
type LLMConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// SecretsConfig locates the LLM credential in AWS Secrets Manager.
type SecretsConfig struct {
	Enabled  bool
	SecretID string
	KeyField string
	Region   string
	TTL      time.Duration
}

type TasksConfig struct {
	ReconcileSpec string
}

type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

func Load() (*Config, error) {
	cfg := &Config{
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Server: ServerConfig{
			Host:        getEnv("SERVER_HOST", "localhost"),
			Port:        getEnvAsInt("SERVER_PORT", 8080),
			PublicURL:   getEnv("PUBLIC_URL", "http://localhost:8080"),
			CORSOrigins: getEnvAsList("CORS_ORIGINS", []string{"*"}),
		},
		Database: DatabaseConfig{
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnvAsInt("POSTGRES_PORT", 5432),
			User:     getEnv("POSTGRES_USER", "postgres"),
			Password: getEnv("POSTGRES_PASSWORD", ""),
			Name:     getEnv("POSTGRES_DB", "sitepilot"),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		},
		Store: StoreConfig{
			Provider: getEnv("STORE_PROVIDER", "postgres"),
		},
		JWT: JWTConfig{
			Secret:     getEnv("JWT_SECRET", ""),
			Expiration: getEnvAsDuration("JWT_EXPIRATION", 7*24*time.Hour),
		},
		Storage: StorageConfig{
			Provider: getEnv("STORAGE_PROVIDER", "local"),
			BasePath: getEnv("STORAGE_BASE_PATH", "./uploads"),
			S3: S3Config{
				BucketName: getEnv("S3_BUCKET_NAME", ""),
				Endpoint:   getEnv("S3_ENDPOINT", ""),
				Region:     getEnv("S3_REGION", "us-west-2"),
				AccessKey:  getEnv("S3_ACCESS_KEY", ""),
				SecretKey:  getEnv("S3_SECRET_KEY", ""),
			},
		},
		Worker: WorkerConfig{
			Concurrency: getEnvAsInt("WORKER_CONCURRENCY", 5),
		},
		Redis: RedisConfig{
			Enabled:  getEnvAsBool("REDIS_ENABLED", true),
			Addr:     fmt.Sprintf("%s:%d", getEnv("REDIS_HOST", "localhost"), getEnvAsInt("REDIS_PORT", 6379)),
			Password: getEnv("REDIS_PASSWORD", ""),
			Username: getEnv("REDIS_USERNAME", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Platform: PlatformConfig{
			BaseURL:           getEnv("WEBFLOW_BASE_URL", "https://api.webflow.com"),
			Token:             getEnv("WEBFLOW_API_TOKEN", ""),
			APIVersion:        getEnv("WEBFLOW_API_VERSION", "1.0.0"),
			MaxRetries:        getEnvAsInt("WEBFLOW_MAX_RETRIES", 3),
			RetryBaseDelay:    getEnvAsDuration("WEBFLOW_RETRY_BASE_DELAY", time.Second),
			RetryMaxDelay:     getEnvAsDuration("WEBFLOW_RETRY_MAX_DELAY", 30*time.Second),
			RequestsPerMinute: getEnvAsInt("WEBFLOW_REQUESTS_PER_MINUTE", 60),
			Timeout:           getEnvAsDuration("WEBFLOW_TIMEOUT", 30*time.Second),
		},
		LLM: LLMConfig{
			BaseURL:     getEnv("CLAUDE_BASE_URL", "https://api.anthropic.com"),
			APIKey:      getEnv("CLAUDE_API_KEY", ""),
			Model:       getEnv("CLAUDE_MODEL", "claude-3-7-sonnet-20250219"),
			MaxTokens:   getEnvAsInt("CLAUDE_MAX_TOKENS", 2000),
			Temperature: getEnvAsFloat("CLAUDE_TEMPERATURE", 0.7),
			Timeout:     getEnvAsDuration("CLAUDE_TIMEOUT", 2*time.Minute),
		},
		Secrets: SecretsConfig{
			Enabled:  getEnvAsBool("CLAUDE_SECRET_ENABLED", true),
			SecretID: getEnv("CLAUDE_SECRET_ID", "Claude"),
			KeyField: getEnv("CLAUDE_SECRET_KEY_FIELD", "CLAUDE_API_KEY"),
			Region:   getEnv("CLAUDE_SECRET_REGION", "us-west-2"),
			TTL:      getEnvAsDuration("CLAUDE_SECRET_TTL", 15*time.Minute),
		},
		Tasks: TasksConfig{
			ReconcileSpec: getEnv("RECONCILE_SCHEDULE", "0 * * * *"),
		},
		RateLimit: RateLimitConfig{
			Requests: getEnvAsInt("API_RATE_LIMIT", 100),
			Window:   getEnvAsDuration("API_RATE_WINDOW", 15*time.Minute),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET must be set")
	}
	switch c.Store.Provider {
	case "postgres", "memory":
	default:
		return fmt.Errorf("unknown STORE_PROVIDER %q", c.Store.Provider)
	}
	switch c.Storage.Provider {
	case "local", "s3":
	default:
		return fmt.Errorf("unknown STORAGE_PROVIDER %q", c.Storage.Provider)
	}
	if c.Platform.MaxRetries < 0 {
		return fmt.Errorf("WEBFLOW_MAX_RETRIES must not be negative")
	}
	if c.Platform.RequestsPerMinute <= 0 {
		return fmt.Errorf("WEBFLOW_REQUESTS_PER_MINUTE must be positive")
	}
	if c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0 {
		return fmt.Errorf("API rate limit must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(value) == "" {
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

// Save writes the configuration as JSON, with secrets blanked.
func (c *Config) Save(path string) error {
	redacted := *c
	redacted.JWT.Secret = ""
	redacted.Database.Password = ""
	redacted.Platform.Token = ""
	redacted.LLM.APIKey = ""
	redacted.Storage.S3.SecretKey = ""
	data, err := json.MarshalIndent(redacted, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
