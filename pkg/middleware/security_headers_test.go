package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

// TestSecurityHeaders はSecurityHeadersポリシーを検証する。
func TestSecurityHeaders(t *testing.T) {
	t.Parallel()

	t.Run("すべてのセキュリティヘッダーが付与されること", func(t *testing.T) {
		t.Parallel()

		router := newPolicyRouter(false, SecurityHeaders())
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

		for k, v := range securityHeaders {
			if got := w.Header().Get(k); got != v {
				t.Errorf("%s = %q, want %q", k, got, v)
			}
		}
	})

	t.Run("エラーレスポンスにもセキュリティヘッダーが付与されること", func(t *testing.T) {
		t.Parallel()

		router := gin.New()
		router.Use(ErrorFormatter(nil, false), NewChain(SecurityHeaders()).Handler(nil))
		router.GET("/test", func(c *gin.Context) {
			panic("boom")
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

		if w.Code != http.StatusInternalServerError {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusInternalServerError)
		}
		if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
			t.Errorf("X-Content-Type-Options = %q, want %q", got, "nosniff")
		}
	})

	t.Run("X-Powered-Byが出力されないこと", func(t *testing.T) {
		t.Parallel()

		router := gin.New()
		router.Use(NewChain(SecurityHeaders()).Handler(nil))
		router.GET("/test", func(c *gin.Context) {
			c.String(http.StatusOK, "ok")
		})

		w := httptest.NewRecorder()
		w.Header().Set("X-Powered-By", "Express")
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

		if got := w.Header().Get("X-Powered-By"); got != "" {
			t.Errorf("X-Powered-By = %q, want empty", got)
		}
	})
}
