package clipboard

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/matzehuels/flowsketch/pkg/errors"
)

// RedisClient is the subset of the go-redis client the Redis backend uses.
type RedisClient interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Close() error
}

// Redis keeps the clipboard under a single key.
type Redis struct {
	client RedisClient
	key    string
	ttl    time.Duration
}

// NewRedis creates a Redis clipboard. An empty key means DefaultRedisKey.
func NewRedis(client RedisClient, key string, ttl time.Duration) *Redis {
	if key == "" {
		key = DefaultRedisKey
	}
	return &Redis{client: client, key: key, ttl: ttl}
}

// Write stores text with the configured TTL.
func (r *Redis) Write(ctx context.Context, text string) error {
	if err := r.client.Set(ctx, r.key, text, r.ttl).Err(); err != nil {
		return errors.Wrap(errors.ErrCodeClipboard, err, "redis set %s", r.key)
	}
	return nil
}

// Read returns the stored text.
func (r *Redis) Read(ctx context.Context) (string, error) {
	text, err := r.client.Get(ctx, r.key).Result()
	if stderrors.Is(err, redis.Nil) {
		return "", empty()
	}
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeClipboard, err, "redis get %s", r.key)
	}
	return text, nil
}

// Close closes the client.
func (r *Redis) Close() error {
	return r.client.Close()
}

var _ Clipboard = (*Redis)(nil)
