package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// rateLimitScript はカウンタを増やし、最初の1件でウィンドウの有効期限を設定する。
var rateLimitScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
return {current, ttl}
`)

// defaultKeyPrefix はRedisキーの接頭辞。
const defaultKeyPrefix = "rl:"

// RedisLimiter はRedisでカウンタを共有する固定ウィンドウ型リミッタ。
// Redisが利用できない場合はインメモリのリミッタで判定する。
type RedisLimiter struct {
	client   redis.UniversalClient
	window   time.Duration
	limit    int
	prefix   string
	timeout  time.Duration
	fallback *InMemoryLimiter
	logger   *zap.Logger
}

// NewRedis は新しいRedisリミッタを生成する。
func NewRedis(client redis.UniversalClient, window time.Duration, limit int, logger *zap.Logger) *RedisLimiter {
	if window <= 0 {
		window = time.Minute
	}
	if limit <= 0 {
		limit = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisLimiter{
		client:   client,
		window:   window,
		limit:    limit,
		prefix:   defaultKeyPrefix,
		timeout:  2 * time.Second,
		fallback: NewInMemory(window, limit),
		logger:   logger,
	}
}

// Allow はLimiterインターフェースを実装する。
func (l *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	if l.client == nil {
		return l.fallback.Allow(ctx, key)
	}

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	count, ttl, err := l.incr(ctx, l.prefix+key)
	if err != nil {
		l.logger.Warn("Redisでのレート制限に失敗したためインメモリで判定します",
			zap.String("key", key), zap.Error(err))
		return l.fallback.Allow(ctx, key)
	}
	if ttl < 0 {
		ttl = l.window
	}
	return decide(count, l.limit, time.Now().UTC().Add(ttl)), nil
}

// Enabled はLimiterインターフェースを実装する。
func (l *RedisLimiter) Enabled() bool { return true }

// Close はRedisクライアントを閉じる。
func (l *RedisLimiter) Close() error {
	if l.client == nil {
		return nil
	}
	return l.client.Close()
}

// incr はスクリプトを実行し、カウントと残りTTLを返す。
func (l *RedisLimiter) incr(ctx context.Context, key string) (int, time.Duration, error) {
	res, err := rateLimitScript.Run(ctx, l.client, []string{key}, l.window.Milliseconds()).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("レート制限スクリプトの実行に失敗: %w", err)
	}
	vals, ok := res.([]any)
	if !ok || len(vals) < 2 {
		return 0, 0, fmt.Errorf("レート制限スクリプトの戻り値が不正: %v", res)
	}
	count, ok := vals[0].(int64)
	if !ok {
		return 0, 0, fmt.Errorf("カウントの型が不正: %T", vals[0])
	}
	ttlMs, _ := vals[1].(int64)
	return int(count), time.Duration(ttlMs) * time.Millisecond, nil
}
