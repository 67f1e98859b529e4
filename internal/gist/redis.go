package gist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps snippets in Redis for self-hosted deployments that do not
// want to depend on GitHub. Snippets do not expire.
type RedisStore struct {
	client  *redis.Client
	prefix  string
	urlBase string
}

type RedisConfig struct {
	Prefix  string
	URLBase string
}

func NewRedisStore(client *redis.Client, config RedisConfig) *RedisStore {
	return &RedisStore{
		client:  client,
		prefix:  config.Prefix,
		urlBase: strings.TrimRight(config.URLBase, "/"),
	}
}

// key builds the final Redis key with prefix.
func (s *RedisStore) key(id string) string {
	if s.prefix == "" {
		return "gist:" + id
	}
	return s.prefix + ":gist:" + id
}

func (s *RedisStore) Create(ctx context.Context, params CreateParams) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	id := newID()
	snap := &Snapshot{
		ID:    id,
		URL:   snippetURL(s.urlBase, id),
		Files: map[string]string{params.Filename: params.Content},
	}

	payload, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("encode gist: %w", err)
	}

	// SETNX so a colliding id can never overwrite an existing snippet.
	ok, err := s.client.SetNX(ctx, s.key(id), payload, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("redis set failed: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("redis set failed: id %s already taken", id)
	}

	return snap, nil
}

func (s *RedisStore) Load(ctx context.Context, id string) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	res, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(res, &snap); err != nil {
		return nil, fmt.Errorf("decode gist: %w", err)
	}
	return &snap, nil
}

// Ping checks if the Redis connection is healthy.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}
	return s.client.Ping(ctx).Err()
}
