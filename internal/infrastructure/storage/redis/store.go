package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"script-agent/internal/application/port/output"
	"script-agent/internal/domain/entity"

	goredis "github.com/redis/go-redis/v9"
)

var _ output.ContextStore = (*Store)(nil)

type Config struct {
	Address  string
	Password string
	DB       int
	// Prefix namespaces every key. Defaults to "script-agent:ctx".
	Prefix string
	// TTL expires idle sessions. Zero keeps them forever.
	TTL time.Duration
}

// Store keeps one hash per session and scope.
type Store struct {
	client *goredis.Client
	prefix string
	ttl    time.Duration
}

func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Address == "" {
		return nil, errors.New("redis address is empty")
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "script-agent:ctx"
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &Store{client: client, prefix: prefix, ttl: cfg.TTL}, nil
}

func (s *Store) key(sessionID string, scope entity.ParameterScope) string {
	return fmt.Sprintf("%s:%s:%s", s.prefix, sessionID, scope)
}

func (s *Store) Load(ctx context.Context, sessionID string) (map[string]string, map[string]string, error) {
	pipe := s.client.Pipeline()
	in := pipe.HGetAll(ctx, s.key(sessionID, entity.ScopeInput))
	out := pipe.HGetAll(ctx, s.key(sessionID, entity.ScopeOutput))
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, goredis.Nil) {
		return nil, nil, fmt.Errorf("failed to load context: %w", err)
	}
	return in.Val(), out.Val(), nil
}

func (s *Store) Put(ctx context.Context, sessionID string, scope entity.ParameterScope, name, value string) error {
	key := s.key(sessionID, scope)
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, name, value)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store %s parameter %q: %w", scope, name, err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.client.Close()
}
