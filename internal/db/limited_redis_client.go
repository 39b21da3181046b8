package db

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// LimitedRedisClient is the limited set of functionality expected from the
// redis client in this adapter. This allows for easy mocking and swapping
// of the client. The universal redis client interface is way too big.
type LimitedRedisClient interface {
	// General commands

	// GET key
	Get(ctx context.Context, key string) *redis.StringCmd
	// SET key value [EX seconds ...]
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	// DEL key [key ...]
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	// EXPIREAT key unix-time-seconds
	ExpireAt(ctx context.Context, key string, tm time.Time) *redis.BoolCmd

	// Hash commands

	// HGETALL key
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
	// HSET key field value [field value ...]
	HSet(ctx context.Context, key string, values ...any) *redis.IntCmd

	// Sorted-set commands, used for the access-token expiry index

	// ZADD key score member [score member ...]
	ZAdd(ctx context.Context, key string, members ...redis.Z) *redis.IntCmd
	// ZREM key member [member ...]
	ZRem(ctx context.Context, key string, members ...any) *redis.IntCmd
	// ZRANGEBYSCORE key min max
	ZRangeByScore(ctx context.Context, key string, opt *redis.ZRangeBy) *redis.StringSliceCmd
}
