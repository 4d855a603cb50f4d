package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/edugate/internal/config"
	"github.com/nao1215/edugate/pkg/metrics"
	"github.com/nao1215/edugate/pkg/middleware"
	"github.com/nao1215/edugate/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// readHeaderTimeout はリクエストヘッダーの読み取りタイムアウト。
const readHeaderTimeout = 10 * time.Second

// Server はRequest GatewayのHTTPサーバー。
type Server struct {
	// cfg は起動時に読み込まれた設定。
	cfg config.Config
	// engine はGinのHTTPルーター。
	engine *gin.Engine
	// handler はトレーシングで包んだengine。
	handler http.Handler
	// routes はルートグループのディスパッチ順。
	routes *RouteTable
	// chain はすべてのリクエストに適用するポリシー。
	chain *middleware.Chain
	// limiter はレート制限ポリシーが使うリミッタ。
	limiter ratelimit.Limiter
	// registry はメトリクスのレジストリ。
	registry *prometheus.Registry
	// metrics はリクエストのメトリクス。
	metrics *metrics.Collector
	// logger は構造化ロガー。
	logger *zap.Logger
	// now はヘルスチェックの時刻を返す。
	now func() time.Time
}

// routeGroup はWithRouteGroupで指定されたグループ。
type routeGroup struct {
	name   string
	prefix string
	group  HandlerGroup
}

// options はNewServerのオプション。
type options struct {
	logger  *zap.Logger
	limiter ratelimit.Limiter
	groups  []routeGroup
	now     func() time.Time
}

// Option はServerの設定を変更する関数。
type Option func(*options)

// WithLogger はロガーを設定する。
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLimiter は設定から生成されるリミッタの代わりにlimiterを使う。
func WithLimiter(limiter ratelimit.Limiter) Option {
	return func(o *options) {
		o.limiter = limiter
	}
}

// WithRouteGroup は名前がnameのルートグループを差し替える。
// 既定のグループ名でない場合は既定のグループの後ろに追加する。
// prefixが空の場合は "/api/<name>" を使う。
func WithRouteGroup(name, prefix string, group HandlerGroup) Option {
	return func(o *options) {
		if prefix == "" {
			prefix = apiPrefix + name
		}
		o.groups = append(o.groups, routeGroup{name: name, prefix: prefix, group: group})
	}
}

// withClock はヘルスチェックに使う時刻の取得関数を差し替える。
func withClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// NewServer は新しいGatewayサーバーを生成する。
// ミドルウェアは RequestID → AccessLog → Metrics → ErrorFormatter → ポリシーチェーン の順に適用される。
func NewServer(cfg config.Config, opts ...Option) (*Server, error) {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}

	limiter := o.limiter
	if limiter == nil {
		var err error
		limiter, err = ratelimit.New(ratelimit.Options{
			Enabled:  cfg.RateLimitEnabled,
			Window:   cfg.RateLimitWindow,
			Max:      cfg.RateLimitMax,
			RedisURL: cfg.RedisURL,
			Logger:   o.logger,
		})
		if err != nil {
			return nil, fmt.Errorf("リミッタの生成に失敗: %w", err)
		}
	}

	registry := metrics.NewRegistry()
	s := &Server{
		cfg:      cfg,
		limiter:  limiter,
		registry: registry,
		metrics:  metrics.NewCollector(registry),
		logger:   o.logger,
		now:      o.now,
	}

	routes, err := s.buildRouteTable(o.groups)
	if err != nil {
		return nil, err
	}
	s.routes = routes

	s.chain = middleware.NewChain(
		middleware.SecurityHeaders(),
		middleware.CORS(middleware.CORSConfig{
			AllowedOrigins:   cfg.AllowedOrigins(),
			AllowCredentials: cfg.CORSCredentials,
		}),
		middleware.RateLimit(limiter),
		middleware.BodyParser(cfg.BodyLimit),
	)

	engine := gin.New()
	engine.RedirectTrailingSlash = false
	engine.RedirectFixedPath = false
	if err := engine.SetTrustedProxies(cfg.Proxies()); err != nil {
		return nil, fmt.Errorf("信頼するプロキシの設定に失敗: %w", err)
	}
	engine.Use(
		middleware.RequestID(),
		middleware.AccessLog(s.logger),
		middleware.Metrics(s.metrics),
		middleware.ErrorFormatter(s.logger, cfg.IsDevelopment()),
		s.chain.Handler(s.metrics.PolicyRejected),
	)
	s.engine = engine
	s.setupRoutes()

	s.handler = otelhttp.NewHandler(engine, "edugate")
	return s, nil
}

// Handler はGatewayのhttp.Handlerを返す。
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Routes はルートグループのディスパッチ順を返す。
func (s *Server) Routes() *RouteTable {
	return s.routes
}

// Policies はポリシー名を適用順に返す。
func (s *Server) Policies() []string {
	return s.chain.Names()
}

// Run は設定されたアドレスでHTTPサーバーを起動し、ctxがキャンセルされるまで待つ。
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return fmt.Errorf("%sでの待ち受けに失敗: %w", s.cfg.Addr(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve はlnでHTTPサーバーを起動する。
// ctxがキャンセルされるとShutdownTimeoutの範囲で処理中のリクエストを待ってから停止する。
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	defer s.closeLimiter()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Gatewayを起動します",
			zap.String("addr", ln.Addr().String()),
			zap.String("environment", s.cfg.Environment),
			zap.Strings("routes", s.routes.Prefixes()),
			zap.Strings("policies", s.chain.Names()),
			zap.Bool("rate_limit", s.limiter.Enabled()),
		)
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("HTTPサーバーが停止しました: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("Gatewayをシャットダウンします", zap.Duration("timeout", s.cfg.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("グレースフルシャットダウンに失敗: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTPサーバーが停止しました: %w", err)
	}
	s.logger.Info("Gatewayを停止しました")
	return nil
}

// closeLimiter はリミッタが外部接続を持つ場合に閉じる。
func (s *Server) closeLimiter() {
	closer, ok := s.limiter.(io.Closer)
	if !ok {
		return
	}
	if err := closer.Close(); err != nil {
		s.logger.Warn("リミッタのクローズに失敗しました", zap.Error(err))
	}
}
