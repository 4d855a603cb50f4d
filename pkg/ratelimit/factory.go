package ratelimit

import (
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Options はリミッタの生成設定。
type Options struct {
	// Enabled がfalseの場合は常に許可するリミッタを返す。
	Enabled bool
	// Window は固定ウィンドウの長さ。
	Window time.Duration
	// Max はウィンドウあたりのリクエスト上限。
	Max int
	// RedisURL が設定されている場合はRedisでカウンタを共有する。
	RedisURL string
	// Logger はフォールバック時の警告出力に使う。
	Logger *zap.Logger
}

// New は設定に応じたリミッタを生成する。
func New(opts Options) (Limiter, error) {
	if !opts.Enabled {
		return Disabled(), nil
	}
	if opts.RedisURL == "" {
		return NewInMemory(opts.Window, opts.Max), nil
	}

	redisOpts, err := redis.ParseURL(opts.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("REDIS_URLの解析に失敗: %w", err)
	}
	return NewRedis(redis.NewClient(redisOpts), opts.Window, opts.Max, opts.Logger), nil
}
