package profile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/nhle/taskhub/internal/model"
)

// RedisCache shares resolved profiles between processes through Redis.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCache connects to redisURL and verifies the connection.
func NewRedisCache(redisURL, prefix string) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisCacheWithClient(client, prefix), nil
}

// NewRedisCacheWithClient wraps an existing client.
func NewRedisCacheWithClient(client *redis.Client, prefix string) *RedisCache {
	if prefix == "" {
		prefix = "taskhub:profile:"
	}
	return &RedisCache{client: client, prefix: prefix}
}

// WithTTL makes entries expire after ttl. Zero keeps them forever.
func (c *RedisCache) WithTTL(ttl time.Duration) *RedisCache {
	c.ttl = ttl
	return c
}

func (c *RedisCache) key(userID string) string {
	return c.prefix + userID
}

func (c *RedisCache) Get(ctx context.Context, userID string) (model.Profile, bool, error) {
	data, err := c.client.Get(ctx, c.key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.Profile{}, false, nil
	}
	if err != nil {
		return model.Profile{}, false, fmt.Errorf("get profile %s: %w", userID, err)
	}

	var p model.Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return model.Profile{}, false, fmt.Errorf("unmarshal profile %s: %w", userID, err)
	}
	return p, true, nil
}

func (c *RedisCache) GetMany(ctx context.Context, userIDs []string) (map[string]model.Profile, error) {
	out := make(map[string]model.Profile, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}

	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = c.key(id)
	}

	vals, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("mget profiles: %w", err)
	}

	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var p model.Profile
		if err := json.Unmarshal([]byte(s), &p); err != nil {
			continue
		}
		out[userIDs[i]] = p
	}
	return out, nil
}

func (c *RedisCache) Set(ctx context.Context, userID string, p model.Profile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}
	if err := c.client.Set(ctx, c.key(userID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("save profile %s: %w", userID, err)
	}
	return nil
}

// Clear deletes every key under the cache prefix.
func (c *RedisCache) Clear(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, c.prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan profiles: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("clear profiles: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
