package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigCommandRedactsSecrets(t *testing.T) {
	t.Setenv("JWT_SECRET", "very-secret")
	t.Setenv("CLAUDE_API_KEY", "sk-live")
	out := filepath.Join(t.TempDir(), "config.json")

	rootCmd.SetArgs([]string{"config", "--env", filepath.Join(t.TempDir(), "missing.env"), "--out", out})
	require.NoError(t, rootCmd.Execute())

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.NotContains(t, string(data), "very-secret")
	assert.NotContains(t, string(data), "sk-live")
}

func TestIssueTokenRejectsUnknownClient(t *testing.T) {
	rootCmd.SetArgs([]string{"issue-token", "--email", "a@example.com", "--client", "fridge"})
	err := rootCmd.Execute()
	assert.ErrorContains(t, err, "unknown client type")
}

func TestAdminCommandsNeedPostgres(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("STORE_PROVIDER", "memory")

	rootCmd.SetArgs([]string{"reconcile", "--env", filepath.Join(t.TempDir(), "missing.env")})
	err := rootCmd.Execute()
	assert.ErrorContains(t, err, "need postgres")
}
