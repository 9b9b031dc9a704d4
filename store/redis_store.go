package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/colloquyhq/colloquy/types"
)

// RedisConfig configures the Redis-backed store.
type RedisConfig struct {
	Addr      string `yaml:"addr" json:"addr"`
	Password  string `yaml:"password" json:"password"`
	DB        int    `yaml:"db" json:"db"`
	KeyPrefix string `yaml:"key_prefix" json:"key_prefix"`
}

// RedisStore persists session snapshots in Redis. Suitable for
// distributed deployments where multiple nodes share stored sessions.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "colloquy:"
	}
	return &RedisStore{client: client, keyPrefix: prefix}, nil
}

// NewRedisStoreWithClient wraps an existing client; used by tests.
func NewRedisStoreWithClient(client *redis.Client, keyPrefix string) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = "colloquy:"
	}
	return &RedisStore{client: client, keyPrefix: keyPrefix}
}

func (s *RedisStore) sessionKey(id string) string {
	return s.keyPrefix + "session:" + id
}

func (s *RedisStore) indexKey() string {
	return s.keyPrefix + "sessions"
}

// Save implements ConversationStore.
func (s *RedisStore) Save(ctx context.Context, snap *types.SessionSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.sessionKey(snap.ID), data, 0)
	pipe.ZAdd(ctx, s.indexKey(), redis.Z{
		Score:  float64(snap.CreatedAt.UnixNano()),
		Member: snap.ID,
	})
	_, err = pipe.Exec(ctx)
	return err
}

// Load implements ConversationStore.
func (s *RedisStore) Load(ctx context.Context, id string) (*types.SessionSnapshot, error) {
	data, err := s.client.Get(ctx, s.sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var snap types.SessionSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", id, err)
	}
	return &snap, nil
}

// ListSummaries implements ConversationStore. IDs come from a sorted set
// scored by creation time so the listing is newest first.
func (s *RedisStore) ListSummaries(ctx context.Context) ([]types.SessionSummary, error) {
	ids, err := s.client.ZRevRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]types.SessionSummary, 0, len(ids))
	for _, id := range ids {
		snap, err := s.Load(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, summarize(snap))
	}
	return out, nil
}

// Delete implements ConversationStore.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.sessionKey(id))
	pipe.ZRem(ctx, s.indexKey(), id)
	_, err := pipe.Exec(ctx)
	return err
}

// Close implements ConversationStore.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
