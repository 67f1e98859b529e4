package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Address:        "127.0.0.1",
			Port:           5000,
			RequestTimeout: time.Minute,
			MaxBodyBytes:   1 << 20,
		},
		MCP:   MCPConfig{Transport: "http", Port: 5001},
		Cache: CacheConfig{TTL: 5 * time.Minute},
		Sandbox: SandboxConfig{
			Backend:     "docker",
			TimeoutSec:  10,
			MemoryMB:    512,
			ImagePrefix: "rust-",
		},
		Gist:    GistConfig{Backend: "memory"},
		Logging: LoggingConfig{Mode: "production", Level: "info"},
	}
}

func TestConfigValidation(t *testing.T) {
	t.Run("ValidConfig", func(t *testing.T) {
		require.NoError(t, validConfig().validate())
	})

	cases := []struct {
		name    string
		mutate  func(c *Config)
		message string
	}{
		{"InvalidPort", func(c *Config) { c.Server.Port = 0 }, "invalid server.port"},
		{"InvalidMCPTransport", func(c *Config) { c.MCP.Transport = "grpc" }, "invalid mcp.transport"},
		{"NonPositiveTTL", func(c *Config) { c.Cache.TTL = 0 }, "cache.ttl must be positive"},
		{"NonPositiveTimeout", func(c *Config) { c.Sandbox.TimeoutSec = 0 }, "sandbox.timeout_sec must be positive"},
		{"NonPositiveMemory", func(c *Config) { c.Sandbox.MemoryMB = -1 }, "sandbox.memory_mb must be positive"},
		{"UnknownSandboxBackend", func(c *Config) { c.Sandbox.Backend = "kubernetes" }, "unsupported sandbox.backend"},
		{"RemoteWithoutURL", func(c *Config) { c.Sandbox.Backend = "remote" }, "sandbox.remote.base_url is required"},
		{"GithubWithoutToken", func(c *Config) { c.Gist.Backend = "github" }, "gist.token is required"},
		{"UnknownGistBackend", func(c *Config) { c.Gist.Backend = "s3" }, "unsupported gist.backend"},
		{"InvalidLoggingMode", func(c *Config) { c.Logging.Mode = "verbose" }, "invalid logging.mode"},
		{"InvalidLoggingLevel", func(c *Config) { c.Logging.Level = "trace" }, "invalid logging.level"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			err := cfg.validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.message)
		})
	}

	t.Run("RemoteWithURL", func(t *testing.T) {
		cfg := validConfig()
		cfg.Sandbox.Backend = "remote"
		cfg.Sandbox.Remote.BaseURL = "http://sandbox.internal"
		require.NoError(t, cfg.validate())
	})
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gateway.yaml")
	content := []byte(`
server:
  port: 8080
cache:
  ttl: 90s
gist:
  backend: memory
logging:
  mode: development
  level: debug
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	t.Setenv("PLAYGROUND_METRICS_TOKEN", "secret")
	t.Setenv("PLAYGROUND_SANDBOX_MEMORY_MB", "256")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
	assert.Equal(t, 90*time.Second, cfg.Cache.TTL)
	assert.Equal(t, "memory", cfg.Gist.Backend)
	assert.Equal(t, "secret", cfg.Metrics.Token)
	assert.Equal(t, 256, cfg.Sandbox.MemoryMB)
	assert.Equal(t, "docker", cfg.Sandbox.Backend)
	assert.Equal(t, 10*time.Second, cfg.SandboxTimeout())
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}
