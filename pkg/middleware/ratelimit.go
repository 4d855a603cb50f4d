package middleware

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/edugate/pkg/apperror"
	"github.com/nao1215/edugate/pkg/ratelimit"
)

// RateLimit はクライアントIPごとにリクエスト数を制限するポリシーを返す。
// 無効化されたリミッタを渡した場合は常に通過する。
func RateLimit(limiter ratelimit.Limiter) Policy {
	if limiter == nil {
		limiter = ratelimit.Disabled()
	}

	return PolicyFunc{
		PolicyName: "rate_limit",
		Fn: func(c *gin.Context) error {
			if !limiter.Enabled() {
				return nil
			}

			d, err := limiter.Allow(c.Request.Context(), c.ClientIP())
			if err != nil {
				return apperror.Internal(fmt.Errorf("レート制限の判定に失敗: %w", err))
			}

			h := c.Writer.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))

			if !d.Allowed {
				h.Set("Retry-After", strconv.Itoa(retryAfterSeconds(d.RetryAfter())))
				return apperror.RateLimited()
			}
			return nil
		},
	}
}

// retryAfterSeconds は待機時間を秒単位に切り上げる。リセット前であれば最低1秒を返す。
func retryAfterSeconds(wait time.Duration) int {
	if wait <= 0 {
		return 0
	}
	return int(math.Ceil(wait.Seconds()))
}
