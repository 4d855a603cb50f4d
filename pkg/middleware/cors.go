package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// CORSConfig はCORSポリシーの設定。
type CORSConfig struct {
	// AllowedOrigins はクロスオリジンリクエストを許可するオリジンの一覧。
	AllowedOrigins []string
	// AllowCredentials はCookieや認証ヘッダー付きのリクエストを許可するかどうか。
	AllowCredentials bool
}

const (
	corsAllowMethods = "GET, HEAD, PUT, PATCH, POST, DELETE"
	corsAllowHeaders = "Authorization, Content-Type"
	corsMaxAge       = "86400"
)

// CORS は指定されたオリジンからのクロスオリジンリクエストを許可するポリシーを返す。
// 許可されていないオリジンにはCORSヘッダーを付与しないだけで、リクエスト自体は拒否しない
// （ブラウザ側でブロックされる）。プリフライトリクエストは204で完了させる。
func CORS(cfg CORSConfig) Policy {
	originsSet := make(map[string]struct{}, len(cfg.AllowedOrigins))
	for _, o := range cfg.AllowedOrigins {
		originsSet[o] = struct{}{}
	}

	return PolicyFunc{
		PolicyName: "cors",
		Fn: func(c *gin.Context) error {
			origin := c.GetHeader("Origin")
			_, allowed := originsSet[origin]

			h := c.Writer.Header()
			h.Add("Vary", "Origin")
			if origin != "" && allowed {
				h.Set("Access-Control-Allow-Origin", origin)
				if cfg.AllowCredentials {
					h.Set("Access-Control-Allow-Credentials", "true")
				}
			}

			if !isPreflight(c.Request) {
				return nil
			}

			if origin != "" && allowed {
				h.Set("Access-Control-Allow-Methods", corsAllowMethods)
				if reqHeaders := c.GetHeader("Access-Control-Request-Headers"); reqHeaders != "" {
					h.Add("Vary", "Access-Control-Request-Headers")
					h.Set("Access-Control-Allow-Headers", reqHeaders)
				} else {
					h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
				}
				h.Set("Access-Control-Max-Age", corsMaxAge)
			}
			c.AbortWithStatus(http.StatusNoContent)
			return nil
		},
	}
}

// isPreflight はリクエストがCORSのプリフライトかどうかを判定する。
// Access-Control-Request-Methodを持たないOPTIONSは通常のリクエストとして扱う。
func isPreflight(r *http.Request) bool {
	return r.Method == http.MethodOptions &&
		strings.TrimSpace(r.Header.Get("Access-Control-Request-Method")) != ""
}
