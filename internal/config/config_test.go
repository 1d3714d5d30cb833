package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 7*24*time.Hour, cfg.JWT.Expiration)
	assert.Equal(t, 3, cfg.Platform.MaxRetries)
	assert.Equal(t, 60, cfg.Platform.RequestsPerMinute)
	assert.Equal(t, "1.0.0", cfg.Platform.APIVersion)
	assert.Equal(t, 2000, cfg.LLM.MaxTokens)
	assert.InDelta(t, 0.7, cfg.LLM.Temperature, 1e-9)
	assert.Equal(t, 15*time.Minute, cfg.Secrets.TTL)
	assert.Equal(t, "Claude", cfg.Secrets.SecretID)
	assert.Equal(t, 100, cfg.RateLimit.Requests)
	assert.Equal(t, 15*time.Minute, cfg.RateLimit.Window)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("WEBFLOW_MAX_RETRIES", "5")
	t.Setenv("CLAUDE_SECRET_TTL", "2m")
	t.Setenv("CORS_ORIGINS", "https://a.example.com, https://b.example.com")
	t.Setenv("REDIS_ENABLED", "false")
	t.Setenv("STORE_PROVIDER", "memory")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Platform.MaxRetries)
	assert.Equal(t, 2*time.Minute, cfg.Secrets.TTL)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.Server.CORSOrigins)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, "memory", cfg.Store.Provider)
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := Load()
	assert.ErrorContains(t, err, "JWT_SECRET")

	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("STORE_PROVIDER", "mongo")
	_, err = Load()
	assert.ErrorContains(t, err, "STORE_PROVIDER")
}

func TestSaveRedactsSecrets(t *testing.T) {
	cfg := LoadTestConfig()
	cfg.LLM.APIKey = "sk-live"
	path := filepath.Join(t.TempDir(), "config.json")

	require.NoError(t, cfg.Save(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded Config
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Empty(t, decoded.JWT.Secret)
	assert.Empty(t, decoded.LLM.APIKey)
	assert.Equal(t, "sk-live", cfg.LLM.APIKey)
}
