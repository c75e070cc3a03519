package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/snowcapio/snowcap/internal/logging"
)

// RedisConnection is a thin connection hub, following the teacher's
// mredis.RedisConnection: lazily dial on first use, keep the client
// around, and expose a logger-aware Connect step separate from
// construction.
type RedisConnection struct {
	Address  string
	Password string
	DB       int
	Logger   logging.Logger

	client *redis.Client
}

func (rc *RedisConnection) Connect(ctx context.Context) error {
	rc.Logger.Info("connecting to redis cache backend")

	client := redis.NewClient(&redis.Options{
		Addr:     rc.Address,
		Password: rc.Password,
		DB:       rc.DB,
	})

	if _, err := client.Ping(ctx).Result(); err != nil {
		rc.Logger.Errorf("redis ping failed: %v", err)
		return fmt.Errorf("cache: connecting to redis: %w", err)
	}

	rc.client = client

	return nil
}

func (rc *RedisConnection) GetClient(ctx context.Context) (*redis.Client, error) {
	if rc.client == nil {
		if err := rc.Connect(ctx); err != nil {
			return nil, err
		}
	}

	return rc.client, nil
}

// Redis is a Cache backed by a shared redis (or valkey) instance,
// msgpack-encoding values so multiple snowcap processes against the
// same warehouse can share reader-cache entries (spec §4.5's
// distributed-cache corollary, SPEC_FULL.md §"DOMAIN STACK").
//
// TTL bounds entries independently of explicit invalidation, since a
// sibling process crashing mid-run must not leave a stale entry alive
// forever.
type Redis struct {
	conn *RedisConnection
	ttl  time.Duration

	// roleKeys tracks, per (sessionID, role), every cache key ever
	// written, so InvalidateRole can issue a bounded DEL rather than
	// scanning the whole keyspace (redis has no per-prefix bulk delete
	// short of SCAN, which is unsafe to run on every invalidation).
	roleKeys *InMemory
}

// NewRedis builds a Redis-backed Cache. ttl <= 0 disables expiry.
func NewRedis(conn *RedisConnection, ttl time.Duration) *Redis {
	return &Redis{conn: conn, ttl: ttl, roleKeys: NewInMemory()}
}

func (r *Redis) Get(ctx context.Context, sessionID, role, key string) (any, bool, error) {
	client, err := r.conn.GetClient(ctx)
	if err != nil {
		return nil, false, err
	}

	raw, err := client.Get(ctx, compositeKey(sessionID, role, key)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}

	if err != nil {
		return nil, false, fmt.Errorf("cache: redis get: %w", err)
	}

	var value any
	if err := msgpack.Unmarshal(raw, &value); err != nil {
		return nil, false, fmt.Errorf("cache: decoding cached value: %w", err)
	}

	return value, true, nil
}

func (r *Redis) Set(ctx context.Context, sessionID, role, key string, value any) error {
	client, err := r.conn.GetClient(ctx)
	if err != nil {
		return err
	}

	raw, err := msgpack.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache: encoding value for cache: %w", err)
	}

	if err := client.Set(ctx, compositeKey(sessionID, role, key), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("cache: redis set: %w", err)
	}

	// roleKeys.Set's value argument is unused by InvalidateRole's prefix
	// scan; reusing InMemory here just gives us the existing key index
	// rather than a bespoke set type.
	_ = r.roleKeys.Set(ctx, sessionID, role, key, struct{}{})

	return nil
}

func (r *Redis) InvalidateRole(ctx context.Context, sessionID, role string) error {
	client, err := r.conn.GetClient(ctx)
	if err != nil {
		return err
	}

	r.roleKeys.mu.Lock()
	prefix := compositeKey(sessionID, role, "")

	var keys []string

	for k := range r.roleKeys.entries {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			keys = append(keys, k)
			delete(r.roleKeys.entries, k)
		}
	}
	r.roleKeys.mu.Unlock()

	if len(keys) == 0 {
		return nil
	}

	if err := client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("cache: redis del on invalidate: %w", err)
	}

	return nil
}

func (r *Redis) Close() error {
	if r.conn.client == nil {
		return nil
	}

	return r.conn.client.Close()
}
