package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 8082, cfg.PortalPort)
	assert.Equal(t, "https://api.mtp.tools", cfg.Platform.BaseURL)
	assert.Equal(t, 30, cfg.Platform.TimeoutSeconds)
	assert.Equal(t, "/data/toolportal.db", cfg.TokenStore.Path)
	assert.Equal(t, "demo-tool", cfg.Tool.Slug)
	assert.False(t, cfg.Cookie.Secure)
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	contents := `
portalPort: 9090
platform:
  baseUrl: http://localhost:8081
  apiKey: test-key
cookie:
  domain: .mtp.tools
  secure: true
tool:
  slug: invoice-gen
  name: Invoice Generator
  noLoginTool: true
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.PortalPort)
	assert.Equal(t, "http://localhost:8081", cfg.Platform.BaseURL)
	assert.Equal(t, "test-key", cfg.Platform.APIKey)
	assert.Equal(t, ".mtp.tools", cfg.Cookie.Domain)
	assert.True(t, cfg.Cookie.Secure)
	assert.Equal(t, "invoice-gen", cfg.Tool.Slug)
	assert.True(t, cfg.Tool.NoLoginTool)
}

func TestLoadConfigMalformedFileErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("portalPort: [not: valid"), 0o600))

	_, err := LoadConfig(path)
	require.Error(t, err)
}

func TestLoadConfigSecureDefaultFromEnv(t *testing.T) {
	t.Setenv("TOOLPORTAL_ENV", "prod")
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.True(t, cfg.Cookie.Secure)
}
