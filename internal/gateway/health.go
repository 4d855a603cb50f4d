package gateway

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// healthTimeFormat はヘルスチェックのタイムスタンプ形式（ミリ秒付きISO-8601、UTC）。
const healthTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// HealthResponse はGET /healthのレスポンス。
type HealthResponse struct {
	// Status は常に "healthy"。
	Status string `json:"status"`
	// Timestamp はレスポンス生成時刻。
	Timestamp string `json:"timestamp"`
	// Environment は設定された実行環境名。
	Environment string `json:"environment"`
}

// handleHealth はヘルスチェックのハンドラを返す。
// プロセスが応答できることだけを示し、内部サービスの状態は確認しない。
func (s *Server) handleHealth() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, HealthResponse{
			Status:      "healthy",
			Timestamp:   s.now().UTC().Format(healthTimeFormat),
			Environment: s.cfg.Environment,
		})
	}
}
