package config

import (
	"os"
	"path"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func writeMainConfigFile(t *testing.T, dir string) {
	t.Helper()
	contents := map[string]any{
		"runningEnvironment": "development",
		"server":             map[string]any{"host": "0.0.0.0", "port": 8080},
		"upstream":           map[string]any{"baseURL": "https://api.feastline.dev", "timeoutSeconds": 30},
		"sessions": map[string]any{
			"idleSessionTTLSeconds": 14400,
			"maxSessionTTLSeconds":  86400,
			"cookieName":            "_feast_session",
		},
		"tokens": map[string]any{
			"refreshEnabled":         true,
			"accessFallbackMinutes":  25,
			"refreshFallbackMinutes": 10080,
			"expiryMarginMinutes":    3,
			"redirectDelaySeconds":   2,
		},
		"routes": map[string]any{
			"homeRoute":           "/home",
			"loginRoute":          "/login",
			"forbiddenRoute":      "/403",
			"notFoundRoute":       "/404",
			"vendorPathPrefix":    "/vendor",
			"vendorRegisterRoute": "/vendor/register",
			"authRouteMode":       "static",
			"staticSuperRole":     "admin",
			"constantRoutes":      []map[string]any{{"path": "/login"}},
			"authRoutes":          []map[string]any{{"path": "/home"}},
		},
		"redis": map[string]any{"type": "redis-mock"},
	}
	raw, err := yaml.Marshal(contents)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path.Join(dir, "config.yaml"), raw, 0666))
}

func writeSecretConfigFile(t *testing.T, dir string) {
	t.Helper()
	contents := map[string]any{
		"tokens": map[string]any{
			"encryption": map[string]any{
				"enabled":   true,
				"secretKey": "token-encryption-key-12345678910",
			},
		},
		"redis": map[string]any{"password": "redis-password-from-secret-file"},
	}
	raw, err := yaml.Marshal(contents)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path.Join(dir, "secret_config.yaml"), raw, 0666))
}

func TestReadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("CONFIG_LOCATION", tmpDir)
	writeMainConfigFile(t, tmpDir)
	writeSecretConfigFile(t, tmpDir)

	ch := NewConfigHandler()
	config, err := ch.Config()

	require.NoError(t, err)
	assert.NotEqual(t, config, Config{})
	assert.Equal(t, "https://api.feastline.dev", config.Upstream.BaseURL.String())
	assert.True(t, config.Tokens.RefreshEnabled)
	assert.Equal(t, RedactedString("token-encryption-key-12345678910"), config.Tokens.Encryption.SecretKey)
	assert.Equal(t, RedactedString("redis-password-from-secret-file"), config.Redis.Password)
	assert.Equal(t, "/vendor", config.Routes.VendorPathPrefix)
}

func TestReadConfigWithEnvVars(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("CONFIG_LOCATION", tmpDir)
	writeMainConfigFile(t, tmpDir)
	writeSecretConfigFile(t, tmpDir)
	t.Setenv("GATEWAY_UPSTREAM_BASEURL", "https://staging-api.feastline.dev")
	t.Setenv("GATEWAY_REDIS_PASSWORD", "env-var-password")

	ch := NewConfigHandler()
	config, err := ch.Config()

	require.NoError(t, err)
	assert.Equal(t, "https://staging-api.feastline.dev", config.Upstream.BaseURL.String())
	assert.Equal(t, RedactedString("env-var-password"), config.Redis.Password)
	// values not overridden by env vars still come from the secret file
	assert.Equal(t, RedactedString("token-encryption-key-12345678910"), config.Tokens.Encryption.SecretKey)
}

func TestReadConfigNoSecretFile(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("CONFIG_LOCATION", tmpDir)
	writeMainConfigFile(t, tmpDir)

	ch := NewConfigHandler()
	config, err := ch.Config()

	require.NoError(t, err)
	assert.Equal(t, "https://api.feastline.dev", config.Upstream.BaseURL.String())
	assert.False(t, config.Tokens.Encryption.Enabled)
}
