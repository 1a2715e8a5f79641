package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "redisgate", cfg.ServiceName)
	assert.Equal(t, ":8080", cfg.HTTPListenAddr)
	assert.Equal(t, "", cfg.MetricsListenAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 15*time.Second, cfg.TenantRefreshInterval)
	assert.Equal(t, 3*time.Second, cfg.CommandTimeout)
	assert.Equal(t, 8, cfg.PoolMaxActive)
	assert.Equal(t, 2*time.Second, cfg.PoolAcquireTimeout)
	assert.Equal(t, 2, cfg.PoolDialRetries)
	assert.Equal(t, 5*time.Minute, cfg.PoolIdleTimeout)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("HTTP_LISTEN_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("TENANT_REFRESH_INTERVAL", "30s")
	t.Setenv("COMMAND_TIMEOUT", "500ms")
	t.Setenv("POOL_MAX_ACTIVE", "16")
	t.Setenv("TENANT_FILE", "/etc/redisgate/tenants.yaml")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTPListenAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 30*time.Second, cfg.TenantRefreshInterval)
	assert.Equal(t, 500*time.Millisecond, cfg.CommandTimeout)
	assert.Equal(t, 16, cfg.PoolMaxActive)
	assert.Equal(t, "/etc/redisgate/tenants.yaml", cfg.TenantFile)
}

func TestLoad_BadDuration(t *testing.T) {
	t.Setenv("COMMAND_TIMEOUT", "soon")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COMMAND_TIMEOUT")
}

func TestLoad_BadInt(t *testing.T) {
	t.Setenv("POOL_MAX_ACTIVE", "many")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "POOL_MAX_ACTIVE")
}

func TestValidate_RequiresTenantSource(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TENANT_FILE")
}

func TestValidate_SourcesAreMutuallyExclusive(t *testing.T) {
	t.Setenv("TENANT_FILE", "/etc/redisgate/tenants.yaml")
	t.Setenv("CONTROL_PLANE_DATABASE_URL", "postgres://gateway:pw@localhost:5432/controlplane")

	cfg, err := Load()
	require.NoError(t, err)

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mutually exclusive")
}

func TestValidate_FileSourceOK(t *testing.T) {
	t.Setenv("TENANT_FILE", "/etc/redisgate/tenants.yaml")

	cfg, err := Load()
	require.NoError(t, err)
	assert.NoError(t, cfg.Validate())
}

func TestValidate_RejectsNonPositiveTimeouts(t *testing.T) {
	t.Setenv("TENANT_FILE", "/etc/redisgate/tenants.yaml")
	t.Setenv("COMMAND_TIMEOUT", "0s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Error(t, cfg.Validate())
}
