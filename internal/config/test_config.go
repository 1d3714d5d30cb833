package config

import "time"

// LoadTestConfig returns an in-memory configuration for tests.
func LoadTestConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "localhost",
			Port:        8081,
			CORSOrigins: []string{"*"},
		},
		Store: StoreConfig{
			Provider: "memory",
		},
		JWT: JWTConfig{
			Secret:     "test-secret",
			Expiration: time.Hour,
		},
		Storage: StorageConfig{
			Provider: "local",
		},
		Platform: PlatformConfig{
			APIVersion:        "1.0.0",
			MaxRetries:        3,
			RetryBaseDelay:    time.Millisecond,
			RetryMaxDelay:     5 * time.Millisecond,
			RequestsPerMinute: 600,
			Timeout:           5 * time.Second,
		},
		LLM: LLMConfig{
			Model:       "test-model",
			MaxTokens:   256,
			Temperature: 0.7,
			Timeout:     5 * time.Second,
		},
		Secrets: SecretsConfig{
			TTL: 15 * time.Minute,
		},
		Tasks: TasksConfig{
			ReconcileSpec: "@hourly",
		},
		RateLimit: RateLimitConfig{
			Requests: 1000,
			Window:   time.Minute,
		},
	}
}
