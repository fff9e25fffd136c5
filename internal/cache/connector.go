package cache

import (
	"context"
	"strconv"

	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redis_rate/v9"
	"moff.io/hedera-dapp/internal/config"
	"moff.io/hedera-dapp/pkg/errors"
	"moff.io/hedera-dapp/pkg/log"
)

var (
	Redis       *redis.Client
	RateLimiter *redis_rate.Limiter
)

// Init connects Redis; an empty address leaves Redis nil and the
// features built on it disabled.
func Init(ctx context.Context, cred *config.DBCredential) error {
	if cred.Address == "" {
		log.Warnf("redis address not configured, redis backed features disabled")
		return nil
	}
	db, _ := strconv.ParseInt(cred.Database, 10, 64)
	client := redis.NewClient(&redis.Options{
		Addr:     cred.GetRedisAddress(),
		Password: cred.Password,
		DB:       int(db),
	})
	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		return errors.Wrap(err, "ping to redis")
	}
	Redis = client
	RateLimiter = redis_rate.NewLimiter(Redis)
	return nil
}

func Close() {
	if Redis != nil {
		Redis.Close()
		Redis = nil
		RateLimiter = nil
	}
}
