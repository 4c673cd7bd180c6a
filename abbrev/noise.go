package abbrev

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisNoiseConfig configures the optional Redis-backed noise filter.
type RedisNoiseConfig struct {
	Addr     string // e.g. localhost:6379
	Password string
	DB       int
	Key      string // redis key for the bloom filter
	// Capacity sets the initial BF.RESERVE capacity (number of items)
	Capacity int
	// ErrorRate sets the desired false positive probability (e.g. 0.001)
	ErrorRate float64
}

// RedisNoise is a bloom filter of abbreviation forms already judged to be
// singleton noise, shared across scans. It uses the RedisBloom BF.* commands.
// Everything about it is best-effort: a false positive only drops one
// borderline singleton, and any Redis failure is reported to the caller to
// log and ignore.
type RedisNoise struct {
	client *redis.Client
	key    string
}

// NewRedisNoise connects, verifies the server and reserves the filter if the
// key does not exist yet. BF.RESERVE failure is non-fatal; BF.ADD can
// auto-create the filter depending on RedisBloom settings.
func NewRedisNoise(cfg RedisNoiseConfig) (*RedisNoise, error) {
	if cfg.Key == "" {
		cfg.Key = "scout:abbrev:noise"
	}
	if cfg.Capacity == 0 {
		cfg.Capacity = 100000
	}
	if cfg.ErrorRate == 0 {
		cfg.ErrorRate = 0.001
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	exists, err := client.Exists(ctx, cfg.Key).Result()
	if err == nil && exists == 0 {
		// BF.RESERVE <key> <error_rate> <capacity>
		_ = client.Do(ctx, "BF.RESERVE", cfg.Key, fmt.Sprintf("%f", cfg.ErrorRate), cfg.Capacity).Err()
	}

	return &RedisNoise{client: client, key: cfg.Key}, nil
}

// Exists checks whether the form was recorded as noise before.
func (r *RedisNoise) Exists(form string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	res, err := r.client.Do(ctx, "BF.EXISTS", r.key, form).Result()
	if err != nil {
		return false, err
	}
	n, ok := res.(int64)
	if !ok {
		return false, fmt.Errorf("unexpected BF.EXISTS reply type %T", res)
	}
	return n == 1, nil
}

// Add records a dropped singleton form.
func (r *RedisNoise) Add(form string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return r.client.Do(ctx, "BF.ADD", r.key, form).Err()
}

// Close closes the underlying Redis client.
func (r *RedisNoise) Close() error {
	return r.client.Close()
}
