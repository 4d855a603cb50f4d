package httpclient

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// DefaultTimeout は内部サービスへのリクエストのデフォルトタイムアウト。
const DefaultTimeout = 30 * time.Second

// hopHeaders は転送してはいけないホップバイホップヘッダー（RFC 9110 7.6.1）。
var hopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// Client は内部サービスへリクエストを転送するHTTPクライアント。
type Client struct {
	// httpClient は内部で使用するHTTPクライアント。
	httpClient *http.Client
	// baseURL は接続先サービスのベースURL。
	baseURL *url.URL
}

// Option はClientの設定を変更する関数。
type Option func(*Client)

// WithTimeout はリクエスト全体のタイムアウトを設定する。0以下の場合は無視する。
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithTransport は内部で使用するトランスポートを差し替える。
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		if rt != nil {
			c.httpClient.Transport = rt
		}
	}
}

// New は新しい転送用HTTPクライアントを生成する。
// baseURLには接続先サービスのベースURL（例: "http://courses:4001"）を指定する。
// トランスポートはOpenTelemetryで計装され、リダイレクトは追跡せずにそのまま返す。
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("ベースURLのパースに失敗: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("ベースURLのスキームはhttpまたはhttpsである必要があります: %q", baseURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("ベースURLにホストがありません: %q", baseURL)
	}

	c := &Client{
		httpClient: &http.Client{
			Timeout:   DefaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		baseURL: u,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL は接続先サービスのベースURLを返す。
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Forward は受信したリクエストをベースURL配下の同じパスに転送する。
// 呼び出し側はレスポンスボディを必ず閉じること。
func (c *Client) Forward(ctx context.Context, in *http.Request) (*http.Response, error) {
	target := *c.baseURL
	target.Path = c.baseURL.Path + in.URL.Path
	target.RawPath = ""
	if in.URL.RawPath != "" {
		target.RawPath = c.baseURL.EscapedPath() + in.URL.RawPath
	}
	target.RawQuery = in.URL.RawQuery

	out, err := http.NewRequestWithContext(ctx, in.Method, target.String(), in.Body)
	if err != nil {
		return nil, fmt.Errorf("転送リクエストの作成に失敗: %w", err)
	}
	out.ContentLength = in.ContentLength
	if in.Body == nil || in.Body == http.NoBody {
		out.Body = http.NoBody
	}

	out.Header = in.Header.Clone()
	if out.Header == nil {
		out.Header = make(http.Header)
	}
	removeHopHeaders(out.Header)
	setForwardedHeaders(out.Header, in)

	// コンテキストからユーザーIDとリクエストIDを伝播する
	if userID, ok := ctx.Value(contextKeyUserID).(string); ok && userID != "" {
		out.Header.Set("X-User-ID", userID)
	} else {
		out.Header.Del("X-User-ID")
	}
	if requestID, ok := ctx.Value(contextKeyRequestID).(string); ok && requestID != "" {
		out.Header.Set("X-Request-ID", requestID)
	}

	resp, err := c.httpClient.Do(out)
	if err != nil {
		return nil, fmt.Errorf("内部サービスへの転送に失敗: url=%s: %w", target.Redacted(), err)
	}
	removeHopHeaders(resp.Header)
	return resp, nil
}

// removeHopHeaders はホップバイホップヘッダーとConnectionで指定されたヘッダーを削除する。
func removeHopHeaders(h http.Header) {
	for _, v := range h.Values("Connection") {
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				h.Del(name)
			}
		}
	}
	for _, name := range hopHeaders {
		h.Del(name)
	}
}

// setForwardedHeaders はX-Forwarded-For/Host/Protoを設定する。
func setForwardedHeaders(h http.Header, in *http.Request) {
	if ip, _, err := net.SplitHostPort(in.RemoteAddr); err == nil {
		if prior := h.Get("X-Forwarded-For"); prior != "" {
			ip = prior + ", " + ip
		}
		h.Set("X-Forwarded-For", ip)
	}
	h.Set("X-Forwarded-Host", in.Host)
	proto := "http"
	if in.TLS != nil {
		proto = "https"
	}
	h.Set("X-Forwarded-Proto", proto)
}

// contextKey はコンテキストキーの型。
type contextKey string

const (
	// contextKeyUserID はコンテキストにユーザーIDを格納するためのキー。
	contextKeyUserID contextKey = "user_id"
	// contextKeyRequestID はコンテキストにリクエストIDを格納するためのキー。
	contextKeyRequestID contextKey = "request_id"
)

// WithUserID はコンテキストにユーザーIDを設定する。
// 内部サービスへの転送時にX-User-IDヘッダーとして伝播される。
// 設定されていない場合、クライアントが送ったX-User-IDは削除される。
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, contextKeyUserID, userID)
}

// WithRequestID はコンテキストにリクエストIDを設定する。
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, contextKeyRequestID, requestID)
}
