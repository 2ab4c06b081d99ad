package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, []int{4000, 4001, 4002, 4003, 5000, 8000}, cfg.GraphQL.Ports)
	assert.Equal(t, 4000, cfg.GraphQL.DefaultPort)
	assert.Equal(t, "/graphql", cfg.GraphQL.Path)
	assert.Equal(t, 1500*time.Millisecond, cfg.GraphQL.ProbeTimeout)
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	path := filepath.Join(dir, "bff.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http_port: "9090"
cache_ttl: 5m
graphql:
  host: backend.local
  ports: [7000, 7001]
  default_port: 7000
`), 0o600))

	t.Setenv("HTTP_PORT", "9191")
	t.Setenv("GRAPHQL_PORTS", "4100, 4200")
	t.Setenv("PROBE_TIMEOUT", "250ms")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9191", cfg.HTTPPort)
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL)
	assert.Equal(t, "backend.local", cfg.GraphQL.Host)
	assert.Equal(t, []int{4100, 4200}, cfg.GraphQL.Ports)
	assert.Equal(t, 7000, cfg.GraphQL.DefaultPort)
	assert.Equal(t, 250*time.Millisecond, cfg.GraphQL.ProbeTimeout)
}

func TestInvalidEnvFallsBack(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("RATE_LIMIT", "lots")
	t.Setenv("GRAPHQL_PORTS", "4000,abc")
	t.Setenv("CART_TTL", "forever")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.RateLimit)
	assert.Equal(t, defaultPorts, cfg.GraphQL.Ports)
	assert.Equal(t, 7*24*time.Hour, cfg.CartTTL)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
