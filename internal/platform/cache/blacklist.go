package cache

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const blacklistPrefix = "elms:token:blacklist:"

// TokenBlacklist revokes tokens by jwt id until they would have expired.
type TokenBlacklist interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

type RedisBlacklist struct {
	rdb goredis.Cmdable
}

func NewRedisBlacklist(rdb goredis.Cmdable) *RedisBlacklist {
	return &RedisBlacklist{rdb: rdb}
}

func (b *RedisBlacklist) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if tokenID == "" || ttl <= 0 {
		return nil
	}
	return b.rdb.Set(ctx, blacklistPrefix+tokenID, "1", ttl).Err()
}

func (b *RedisBlacklist) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if tokenID == "" {
		return false, nil
	}
	n, err := b.rdb.Exists(ctx, blacklistPrefix+tokenID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Connect dials redis and pings it.
func Connect(ctx context.Context, addr, password string, db int, log *zap.Logger) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	log.Info("redis connected", zap.String("addr", addr))
	return rdb, nil
}

// NoopBlacklist is used when redis is not configured; logout then only
// discards the token client side.
type NoopBlacklist struct{}

func (NoopBlacklist) Revoke(context.Context, string, time.Duration) error { return nil }

func (NoopBlacklist) IsRevoked(context.Context, string) (bool, error) { return false, nil }
