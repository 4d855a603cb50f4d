package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Decision はレート制限の判定結果。
type Decision struct {
	// Allowed はリクエストを許可するかどうか。
	Allowed bool
	// Count は現在のウィンドウ内でのリクエスト数。
	Count int
	// Limit はウィンドウあたりの上限。
	Limit int
	// Remaining は残りのリクエスト数。0未満にはならない。
	Remaining int
	// ResetAt はウィンドウがリセットされる時刻。
	ResetAt time.Time
}

// RetryAfter はウィンドウがリセットされるまでの時間を返す。
func (d Decision) RetryAfter() time.Duration {
	wait := time.Until(d.ResetAt)
	if wait < 0 {
		return 0
	}
	return wait
}

// Limiter はキー単位のレート制限を行う。
type Limiter interface {
	// Allow はkeyに対するリクエストを1件数え、許可するかどうかを判定する。
	Allow(ctx context.Context, key string) (Decision, error)
	// Enabled はリミッタが実際に制限を行うかどうかを返す。
	Enabled() bool
}

type disabledLimiter struct{}

// Disabled は常にリクエストを許可するリミッタを返す。
// 呼び出し側を変更せずにレート制限を無効化するために使う。
func Disabled() Limiter {
	return disabledLimiter{}
}

func (disabledLimiter) Allow(context.Context, string) (Decision, error) {
	return Decision{Allowed: true}, nil
}

func (disabledLimiter) Enabled() bool { return false }

// InMemoryLimiter はプロセス内のマップでカウンタを保持する固定ウィンドウ型リミッタ。
// 同一キーへの同時リクエストはミューテックスで直列化される。
type InMemoryLimiter struct {
	mu     sync.Mutex
	window time.Duration
	limit  int
	items  map[string]entry
	now    func() time.Time
}

type entry struct {
	count   int
	resetAt time.Time
}

// NewInMemory は新しいインメモリリミッタを生成する。
// windowが0以下なら1分、limitが0以下なら1として扱う。
func NewInMemory(window time.Duration, limit int) *InMemoryLimiter {
	if window <= 0 {
		window = time.Minute
	}
	if limit <= 0 {
		limit = 1
	}
	return &InMemoryLimiter{
		window: window,
		limit:  limit,
		items:  make(map[string]entry),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Allow はLimiterインターフェースを実装する。
func (l *InMemoryLimiter) Allow(_ context.Context, key string) (Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.cleanup(now)

	curr, ok := l.items[key]
	if !ok || !now.Before(curr.resetAt) {
		curr = entry{resetAt: now.Add(l.window)}
	}
	curr.count++
	l.items[key] = curr

	return decide(curr.count, l.limit, curr.resetAt), nil
}

// Enabled はLimiterインターフェースを実装する。
func (l *InMemoryLimiter) Enabled() bool { return true }

// cleanup は期限切れのエントリを削除する。
func (l *InMemoryLimiter) cleanup(now time.Time) {
	for k, v := range l.items {
		if !now.Before(v.resetAt) {
			delete(l.items, k)
		}
	}
}

func decide(count, limit int, resetAt time.Time) Decision {
	return Decision{
		Allowed:   count <= limit,
		Count:     count,
		Limit:     limit,
		Remaining: max(0, limit-count),
		ResetAt:   resetAt,
	}
}
