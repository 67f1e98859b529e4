// Package config loads and validates the gateway configuration.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	MCP     MCPConfig     `mapstructure:"mcp"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Sandbox SandboxConfig `mapstructure:"sandbox"`
	Gist    GistConfig    `mapstructure:"gist"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Address        string        `mapstructure:"address"`
	Port           int           `mapstructure:"port"`
	CORSEnabled    bool          `mapstructure:"cors_enabled"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxBodyBytes   int64         `mapstructure:"max_body_bytes"`
}

// Addr returns the listen address for the HTTP server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Address, s.Port)
}

// MCPConfig holds configuration for the MCP front-end.
type MCPConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Transport string `mapstructure:"transport"`
	Port      int    `mapstructure:"port"`
}

// CacheConfig holds metadata cache configuration
type CacheConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

// SandboxConfig holds execution backend configuration
type SandboxConfig struct {
	Backend        string       `mapstructure:"backend"`
	TimeoutSec     int          `mapstructure:"timeout_sec"`
	MemoryMB       int          `mapstructure:"memory_mb"`
	NetworkEnabled bool         `mapstructure:"network_enabled"`
	ImagePrefix    string       `mapstructure:"image_prefix"`
	Remote         RemoteConfig `mapstructure:"remote"`
}

// RemoteConfig holds settings for the HTTP execution backend.
type RemoteConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	APIKey     string        `mapstructure:"api_key"`
	MaxRetries int           `mapstructure:"max_retries"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// GistConfig holds snippet store configuration
type GistConfig struct {
	Backend   string `mapstructure:"backend"`
	Token     string `mapstructure:"token"`
	APIBase   string `mapstructure:"api_base"`
	RedisAddr string `mapstructure:"redis_addr"`
	Prefix    string `mapstructure:"prefix"`
	URLBase   string `mapstructure:"url_base"`
}

// MetricsConfig holds configuration of the diagnostics endpoint.
type MetricsConfig struct {
	Token string `mapstructure:"token"`
}

// LoggingConfig holds logger configuration
type LoggingConfig struct {
	Mode  string `mapstructure:"mode"`
	Level string `mapstructure:"level"`
}

const envPrefix = "PLAYGROUND"

// Load reads the configuration from path, or searches for config.yaml in
// the working directory when path is empty. Environment variables prefixed
// with PLAYGROUND_ override file values.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// If config file not found, continue with defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	return &config, nil
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", "0.0.0.0")
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.cors_enabled", false)
	v.SetDefault("server.request_timeout", 60*time.Second)
	v.SetDefault("server.max_body_bytes", 1<<20)

	v.SetDefault("mcp.enabled", false)
	v.SetDefault("mcp.transport", "http")
	v.SetDefault("mcp.port", 5001)

	v.SetDefault("cache.ttl", 5*time.Minute)

	v.SetDefault("sandbox.backend", "docker")
	v.SetDefault("sandbox.timeout_sec", 10)
	v.SetDefault("sandbox.memory_mb", 512)
	v.SetDefault("sandbox.network_enabled", false)
	v.SetDefault("sandbox.image_prefix", "rust-")
	v.SetDefault("sandbox.remote.base_url", "")
	v.SetDefault("sandbox.remote.api_key", "")
	v.SetDefault("sandbox.remote.max_retries", 2)
	v.SetDefault("sandbox.remote.timeout", 30*time.Second)

	v.SetDefault("gist.backend", "github")
	v.SetDefault("gist.token", "")
	v.SetDefault("gist.api_base", "https://api.github.com")
	v.SetDefault("gist.redis_addr", "127.0.0.1:6379")
	v.SetDefault("gist.prefix", "playground")
	v.SetDefault("gist.url_base", "")

	v.SetDefault("metrics.token", "")

	v.SetDefault("logging.mode", "production")
	v.SetDefault("logging.level", "info")
}

// validate ensures the configuration is valid
func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port: %d", c.Server.Port)
	}

	if c.Server.RequestTimeout <= 0 {
		return fmt.Errorf("server.request_timeout must be positive, got: %s", c.Server.RequestTimeout)
	}

	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("server.max_body_bytes must be positive, got: %d", c.Server.MaxBodyBytes)
	}

	if c.MCP.Transport != "stdio" && c.MCP.Transport != "http" {
		return fmt.Errorf("invalid mcp.transport: %s, must be 'stdio' or 'http'", c.MCP.Transport)
	}

	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive, got: %s", c.Cache.TTL)
	}

	if c.Sandbox.TimeoutSec <= 0 {
		return fmt.Errorf("sandbox.timeout_sec must be positive, got: %d", c.Sandbox.TimeoutSec)
	}

	if c.Sandbox.MemoryMB <= 0 {
		return fmt.Errorf("sandbox.memory_mb must be positive, got: %d", c.Sandbox.MemoryMB)
	}

	switch c.Sandbox.Backend {
	case "docker":
	case "remote":
		if c.Sandbox.Remote.BaseURL == "" {
			return errors.New("sandbox.remote.base_url is required for the remote backend")
		}
	default:
		return fmt.Errorf("unsupported sandbox.backend: %s", c.Sandbox.Backend)
	}

	switch c.Gist.Backend {
	case "github":
		if c.Gist.Token == "" {
			return errors.New("gist.token is required for the github backend")
		}
	case "memory", "redis":
	default:
		return fmt.Errorf("unsupported gist.backend: %s", c.Gist.Backend)
	}

	if c.Logging.Mode != "production" && c.Logging.Mode != "development" {
		return fmt.Errorf("invalid logging.mode: %s", c.Logging.Mode)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error", "dpanic", "panic", "fatal":
	default:
		return fmt.Errorf("invalid logging.level: %s", c.Logging.Level)
	}

	return nil
}

// SandboxTimeout returns the execution timeout as a duration
func (c *Config) SandboxTimeout() time.Duration {
	return time.Duration(c.Sandbox.TimeoutSec) * time.Second
}
