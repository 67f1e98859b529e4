package gist

import (
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	BackendGitHub = "github"
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

type Config struct {
	Backend   string
	Token     string
	APIBase   string
	RedisAddr string
	Prefix    string
	URLBase   string
}

// NewStore builds the configured backend. The returned close function
// releases backend resources and is never nil.
func NewStore(cfg Config) (Store, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Backend {
	case BackendGitHub, "":
		client := &http.Client{Timeout: 30 * time.Second}
		return NewGitHubStore(cfg.APIBase, cfg.Token, client), noop, nil
	case BackendMemory:
		return NewMemoryStore(cfg.URLBase), noop, nil
	case BackendRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		return NewRedisStore(client, RedisConfig{Prefix: cfg.Prefix, URLBase: cfg.URLBase}), client.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported gist backend: %s", cfg.Backend)
	}
}
