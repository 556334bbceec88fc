// internal/store/redis.go
//
// Redis backend: JSON record under game:<key>, key index in the "games" set.

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeySet = "games"

// Redis keeps each record as a JSON string under game:<key> and tracks
// all keys in a set so Keys does not need SCAN.
type Redis struct {
	client *redis.Client
}

// OpenRedis connects and pings. Accepts "host:port" or a redis:// URL.
func OpenRedis(ctx context.Context, uri string) (*Redis, error) {
	if uri == "" {
		return nil, errors.New("store: redis uri not configured")
	}
	var opt *redis.Options
	if strings.Contains(uri, "://") {
		var err error
		if opt, err = redis.ParseURL(uri); err != nil {
			return nil, fmt.Errorf("parse redis uri: %w", err)
		}
	} else {
		opt = &redis.Options{Addr: uri}
	}
	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedis(client), nil
}

// NewRedis wraps an existing client.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (r *Redis) key(key string) string {
	return fmt.Sprintf("game:%s", key)
}

func (r *Redis) Save(ctx context.Context, key string, rec *Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, r.key(key), data, 0)
		p.SAdd(ctx, redisKeySet, key)
		return nil
	})
	if err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

func (r *Redis) Load(ctx context.Context, key string) (*Record, error) {
	data, err := r.client.Get(ctx, r.key(key)).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	var rec Record
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return &rec, nil
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, r.key(key))
		p.SRem(ctx, redisKeySet, key)
		return nil
	})
	return err
}

func (r *Redis) Keys(ctx context.Context) ([]string, error) {
	return r.client.SMembers(ctx, redisKeySet).Result()
}

func (r *Redis) Close() error { return r.client.Close() }
