package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigFromFile(t *testing.T) {
	path := writeConfig(t, `
zosmf:
  host: mvs.example.com
  port: 10443
  base_path: gateway/ibmzosmf/
  reject_unauthorized: false
auth:
  user: ibmuser
  password: secret
polling:
  interval: 500ms
  timeout: 10m
db:
  enable: true
  host: db
  name: runs
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "mvs.example.com", cfg.Zosmf.Host)
	assert.Equal(t, 10443, cfg.Zosmf.Port)
	assert.False(t, cfg.Zosmf.RejectUnauthorized)
	assert.Equal(t, "1.0", cfg.Zosmf.Version)
	assert.Equal(t, "https://mvs.example.com:10443/gateway/ibmzosmf", cfg.BaseURL())
	assert.Equal(t, 500*time.Millisecond, cfg.Polling.Interval)
	assert.Equal(t, 15*time.Second, cfg.Polling.MaxInterval)
	assert.Equal(t, 10*time.Minute, cfg.Polling.Timeout)
	assert.Equal(t, "ibmuser", cfg.Auth.User)
	assert.Contains(t, cfg.DSN(), "dbname=runs")
	assert.Contains(t, cfg.DSN(), "port=5432")
}

func TestLoadConfigEnvOverride(t *testing.T) {
	path := writeConfig(t, "zosmf:\n  host: from-file\n")
	t.Setenv("ZWF_ZOSMF_HOST", "from-env")
	t.Setenv("ZWF_POLLING_INTERVAL", "3s")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Zosmf.Host)
	assert.Equal(t, 3*time.Second, cfg.Polling.Interval)
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadConfigRejectsBadPolling(t *testing.T) {
	path := writeConfig(t, "polling:\n  interval: 0s\n")
	_, err := LoadConfig(path)
	assert.ErrorContains(t, err, "polling.interval")
}

func TestNormalizeBasePath(t *testing.T) {
	assert.Equal(t, "", normalizeBasePath(""))
	assert.Equal(t, "/api", normalizeBasePath("api/"))
	assert.Equal(t, "/api/v1", normalizeBasePath(" /api/v1// "))
}
