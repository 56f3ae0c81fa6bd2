package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const clearBatch = 100

// RedisClient tracks processed source URLs in Redis
type RedisClient struct {
	client *redis.Client
	prefix string
}

// NewRedisClient connects to url and verifies the connection
func NewRedisClient(ctx context.Context, url, prefix string) (*RedisClient, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	// Test the connection
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisClient{
		client: client,
		prefix: prefix,
	}, nil
}

func (r *RedisClient) Close() error {
	return r.client.Close()
}

func (r *RedisClient) key(hash string) string {
	return r.prefix + hash
}

// IsProcessed reports whether hash was marked and has not expired
func (r *RedisClient) IsProcessed(ctx context.Context, hash string) (bool, error) {
	n, err := r.client.Exists(ctx, r.key(hash)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to look up %s: %w", hash, err)
	}
	return n == 1, nil
}

// MarkProcessed records when hash was stored. A non-positive ttl keeps the
// key until ClearProcessed.
func (r *RedisClient) MarkProcessed(ctx context.Context, hash string, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	stamp := time.Now().UTC().Format(time.RFC3339)
	if err := r.client.Set(ctx, r.key(hash), stamp, ttl).Err(); err != nil {
		return fmt.Errorf("failed to mark %s: %w", hash, err)
	}
	return nil
}

// ClearProcessed removes every key under the prefix, one scan page at a time
func (r *RedisClient) ClearProcessed(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, r.prefix+"*", clearBatch).Result()
		if err != nil {
			return fmt.Errorf("failed to scan processed keys: %w", err)
		}
		if len(keys) > 0 {
			if err := r.client.Unlink(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("failed to delete processed keys: %w", err)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}
