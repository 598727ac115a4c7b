package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/himanishpuri/tunebot/internal/apperr"
	"github.com/himanishpuri/tunebot/pkg/models"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "tunebot:session:"

type redisEntry struct {
	MessageRef *int64             `json:"message_ref,omitempty"`
	Meta       models.SessionMeta `json:"meta"`
	CreatedAt  int64              `json:"created_at"` // unix nanoseconds
}

// RedisCache relies on key expiry for eviction, so SweepExpired is a no-op.
type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
	now func() time.Time
}

// OpenRedis connects using a redis:// URL and verifies the connection.
func OpenRedis(ctx context.Context, url string, ttl time.Duration, opts ...Option) (*RedisCache, error) {
	redisOpts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(redisOpts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedis(rdb, ttl, opts...), nil
}

func NewRedis(rdb *redis.Client, ttl time.Duration, opts ...Option) *RedisCache {
	o := buildOptions(opts)
	return &RedisCache{rdb: rdb, ttl: ttl, now: o.now}
}

func (c *RedisCache) load(ctx context.Context, key string) (*redisEntry, error) {
	data, err := c.rdb.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, errMissing(key)
	}
	if err != nil {
		return nil, apperr.New(apperr.StorageError, fmt.Errorf("loading session %q: %w", key, err))
	}
	var e redisEntry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, apperr.New(apperr.StorageError, fmt.Errorf("decoding session %q: %w", key, err))
	}
	if expired(time.Unix(0, e.CreatedAt), c.now(), c.ttl) {
		return nil, errMissing(key)
	}
	return &e, nil
}

func (c *RedisCache) store(ctx context.Context, key string, e *redisEntry) error {
	remaining := c.ttl - c.now().Sub(time.Unix(0, e.CreatedAt))
	if remaining <= 0 {
		return errMissing(key)
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encoding session meta: %w", err)
	}
	if err := c.rdb.Set(ctx, redisKeyPrefix+key, data, remaining).Err(); err != nil {
		return apperr.New(apperr.StorageError, fmt.Errorf("saving session %q: %w", key, err))
	}
	return nil
}

func (c *RedisCache) Put(ctx context.Context, key string, messageRef *int64, meta models.SessionMeta) error {
	if messageRef == nil {
		if prev, err := c.load(ctx, key); err == nil {
			messageRef = prev.MessageRef
		}
	}
	return c.store(ctx, key, &redisEntry{
		MessageRef: messageRef,
		Meta:       meta,
		CreatedAt:  c.now().UnixNano(),
	})
}

func (c *RedisCache) Get(ctx context.Context, key string) (*models.SessionEntry, error) {
	e, err := c.load(ctx, key)
	if err != nil {
		return nil, err
	}
	return &models.SessionEntry{
		Key:        key,
		MessageRef: e.MessageRef,
		Meta:       e.Meta,
		CreatedAt:  time.Unix(0, e.CreatedAt),
	}, nil
}

func (c *RedisCache) SetMessageRef(ctx context.Context, key string, messageRef int64) error {
	e, err := c.load(ctx, key)
	if err != nil {
		return err
	}
	e.MessageRef = &messageRef
	return c.store(ctx, key, e)
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if err := c.rdb.Del(ctx, redisKeyPrefix+key).Err(); err != nil {
		return apperr.New(apperr.StorageError, fmt.Errorf("deleting session %q: %w", key, err))
	}
	return nil
}

func (c *RedisCache) SweepExpired(ctx context.Context) (int64, error) {
	return 0, nil
}

func (c *RedisCache) Close() error {
	return c.rdb.Close()
}
