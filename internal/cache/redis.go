package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"docintel/internal/logging"
)

// Redis is the production Cache backend.
type Redis struct {
	client *redis.Client
}

// NewRedis constructs a Redis-backed cache from an address/password/db
// triple, matching the configuration shape used throughout the service.
func NewRedis(addr, password string, db int) *Redis {
	return &Redis{client: redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})}
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			logging.FromContext(ctx).Warn().Err(err).Str("key", key).Msg("cache_get_error")
		}
		return nil, false
	}
	return val, true
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	ttl := time.Duration(ttlSeconds) * time.Second
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		logging.FromContext(ctx).Warn().Err(err).Str("key", key).Msg("cache_set_error")
		return nil
	}
	return nil
}

func (r *Redis) Del(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		logging.FromContext(ctx).Warn().Err(err).Str("key", key).Msg("cache_del_error")
	}
	return nil
}

func (r *Redis) DelPrefix(ctx context.Context, prefix string) error {
	iter := r.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		logging.FromContext(ctx).Warn().Err(err).Str("prefix", prefix).Msg("cache_scan_error")
		return nil
	}
	if len(keys) == 0 {
		return nil
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		logging.FromContext(ctx).Warn().Err(err).Str("prefix", prefix).Msg("cache_del_prefix_error")
	}
	return nil
}

func (r *Redis) Incr(ctx context.Context, key string) (int64, error) {
	n, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		logging.FromContext(ctx).Warn().Err(err).Str("key", key).Msg("cache_incr_error")
		return 0, nil
	}
	return n, nil
}

// Close releases the underlying client connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}

var _ Cache = (*Redis)(nil)
