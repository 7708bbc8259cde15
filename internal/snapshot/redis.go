package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"StockKeeper/internal/inventory"
)

const DefaultRedisKey = "inventory:snapshot"

// Redis keeps the snapshot as the same JSON document the file backend
// writes, under a single key.
type Redis struct {
	client *redis.Client
	key    string
}

func NewRedis(client *redis.Client, key string) *Redis {
	if key == "" {
		key = DefaultRedisKey
	}
	return &Redis{client: client, key: key}
}

func OpenRedis(ctx context.Context, url string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	r := NewRedis(redis.NewClient(opts), "")
	if err := r.Ping(ctx); err != nil {
		_ = r.client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return r, nil
}

func (r *Redis) Save(ctx context.Context, snap inventory.Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		return r.client.Set(ctx, r.key, raw, 0).Err()
	})
}

func (r *Redis) Load(ctx context.Context) (inventory.Snapshot, error) {
	var raw []byte
	err := withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		var err error
		raw, err = r.client.Get(ctx, r.key).Bytes()
		return err
	})
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", r.key, err)
	}

	var snap inventory.Snapshot
	if err := snap.UnmarshalJSON(raw); err != nil {
		return nil, err
	}
	return snap, nil
}

func (r *Redis) Ping(ctx context.Context) error {
	return withTimeout(ctx, pingTimeout, func(ctx context.Context) error {
		return r.client.Ping(ctx).Err()
	})
}

func (r *Redis) Close() error { return r.client.Close() }

func (r *Redis) String() string { return "redis:" + r.key }
