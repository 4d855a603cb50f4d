package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/edugate/pkg/metrics"
)

// RouteKey はディスパッチされたルートグループのプレフィックスを格納するコンテキストキー。
const RouteKey = "route_group"

// routeUnmatched はどのルートにも一致しなかったリクエストのラベル。
const routeUnmatched = "unmatched"

// Metrics はリクエスト数と処理時間を記録するGinミドルウェアを返す。
// ラベルのカーディナリティを抑えるため、パスではなくルート名を記録する。
func Metrics(m *metrics.Collector) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}

		start := time.Now()
		m.RequestStarted()
		defer func() {
			m.RequestFinished(c.Request.Method, RouteLabel(c), strconv.Itoa(c.Writer.Status()), time.Since(start).Seconds())
		}()
		c.Next()
	}
}

// RouteLabel はリクエストが処理されたルートを返す。
// Ginに直接登録されたルートはそのパス、ルートグループはそのプレフィックスを返す。
func RouteLabel(c *gin.Context) string {
	if route := c.GetString(RouteKey); route != "" {
		return route
	}
	if route := c.FullPath(); route != "" {
		return route
	}
	return routeUnmatched
}
