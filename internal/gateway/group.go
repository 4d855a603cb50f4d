package gateway

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/edugate/pkg/apperror"
	"github.com/nao1215/edugate/pkg/httpclient"
	"github.com/nao1215/edugate/pkg/middleware"
)

// HandlerGroup はプレフィックス配下のリクエストを処理するルートグループ。
// エラーを返した場合はエラーフォーマッタがレスポンスを生成する。
type HandlerGroup interface {
	ServeGroup(c *gin.Context) error
}

// HandlerGroupFunc は関数をHandlerGroupとして扱うためのアダプタ。
type HandlerGroupFunc func(c *gin.Context) error

// ServeGroup はHandlerGroupインターフェースを実装する。
func (f HandlerGroupFunc) ServeGroup(c *gin.Context) error { return f(c) }

// notConfiguredGroup は転送先が設定されていないグループ。
// どのリクエストも処理せず、404にフォールスルーさせる。
var notConfiguredGroup = HandlerGroupFunc(func(*gin.Context) error {
	return apperror.NotFound()
})

// UpstreamGroup はリクエストを内部サービスに転送するルートグループ。
type UpstreamGroup struct {
	client *httpclient.Client
}

// NewUpstreamGroup はbaseURLのサービスに転送するUpstreamGroupを生成する。
func NewUpstreamGroup(baseURL string, timeout time.Duration) (*UpstreamGroup, error) {
	client, err := httpclient.New(baseURL, httpclient.WithTimeout(timeout))
	if err != nil {
		return nil, fmt.Errorf("転送先クライアントの生成に失敗: %w", err)
	}
	return &UpstreamGroup{client: client}, nil
}

// ServeGroup はリクエストを内部サービスに転送し、レスポンスをそのまま返す。
// 内部サービスに到達できない場合は502として扱う。
// Gatewayのポリシーが設定したヘッダーは内部サービスのヘッダーより優先される。
func (g *UpstreamGroup) ServeGroup(c *gin.Context) error {
	ctx := httpclient.WithUserID(c.Request.Context(), middleware.GetUserID(c))
	ctx = httpclient.WithRequestID(ctx, middleware.GetRequestID(c))

	resp, err := g.client.Forward(ctx, c.Request)
	if err != nil {
		return apperror.BadGateway(err)
	}
	defer resp.Body.Close()

	h := c.Writer.Header()
	for k, vv := range resp.Header {
		if _, set := h[k]; set || skipUpstreamHeader(k) {
			continue
		}
		h[k] = vv
	}

	c.Status(resp.StatusCode)
	c.Writer.WriteHeaderNow()
	if _, err := io.Copy(c.Writer, resp.Body); err != nil {
		return fmt.Errorf("内部サービスのレスポンスの転送に失敗: %w", err)
	}
	return nil
}

// skipUpstreamHeader は内部サービスから返されても転送しないヘッダーかどうかを判定する。
func skipUpstreamHeader(name string) bool {
	return name == "X-Powered-By" || strings.HasPrefix(name, "Access-Control-")
}

// Protect はポリシーを通過したリクエストだけをgroupに渡すグループを返す。
func Protect(group HandlerGroup, policies ...middleware.Policy) HandlerGroup {
	return HandlerGroupFunc(func(c *gin.Context) error {
		for _, p := range policies {
			if err := p.Process(c); err != nil {
				return err
			}
			if c.IsAborted() {
				return nil
			}
		}
		return group.ServeGroup(c)
	})
}
