package gateway

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/edugate/internal/config"
	"github.com/nao1215/edugate/pkg/apperror"
	"github.com/nao1215/edugate/pkg/metrics"
	"github.com/nao1215/edugate/pkg/middleware"
)

// apiPrefix はルートグループがマウントされるパスの共通プレフィックス。
const apiPrefix = "/api/"

// setupRoutes はヘルスチェック、メトリクス、ルートグループのディスパッチャを登録する。
// ヘルスチェックは最初に登録され、ルートグループより優先される。
func (s *Server) setupRoutes() {
	s.engine.GET("/health", s.handleHealth())
	s.engine.HEAD("/health", s.handleHealth())
	if s.cfg.MetricsEnabled {
		s.engine.GET("/metrics", gin.WrapH(metrics.Handler(s.registry)))
	}
	s.engine.NoRoute(s.dispatch)
}

// dispatch はルートテーブルで最初に一致したグループにリクエストを渡す。
// どのルートにも一致しない場合、またはグループが何も書き込まずに処理を終えた場合は
// メソッドに関わらず404とする。
func (s *Server) dispatch(c *gin.Context) {
	route, ok := s.routes.Match(c.Request.URL.Path)
	if !ok {
		_ = c.Error(apperror.NotFound())
		return
	}

	c.Set(middleware.RouteKey, route.Prefix)
	if err := route.Group.ServeGroup(c); err != nil {
		_ = c.Error(err)
		return
	}
	if !c.Writer.Written() {
		_ = c.Error(apperror.NotFound())
	}
}

// buildRouteTable は設定とオプションからルートテーブルを組み立てる。
// 既定のグループは courses, ai, analytics, progress, teacher, school の順に並び、
// WithRouteGroupで同名のグループを差し替えるか、末尾に新しいグループを追加できる。
func (s *Server) buildRouteTable(overrides []routeGroup) (*RouteTable, error) {
	byName := make(map[string]routeGroup, len(overrides))
	for _, o := range overrides {
		byName[o.name] = o
	}

	var routes []Route
	for _, name := range config.GroupNames() {
		route := Route{Name: name, Prefix: apiPrefix + name}
		if o, ok := byName[name]; ok {
			if o.prefix != "" {
				route.Prefix = o.prefix
			}
			route.Group = o.group
			delete(byName, name)
		} else {
			group, err := s.upstreamGroup(name)
			if err != nil {
				return nil, err
			}
			route.Group = group
		}
		routes = append(routes, s.protect(route))
	}

	for _, o := range overrides {
		last, ok := byName[o.name]
		if !ok {
			continue
		}
		delete(byName, o.name)
		routes = append(routes, s.protect(Route{Name: last.name, Prefix: last.prefix, Group: last.group}))
	}

	table, err := NewRouteTable(routes...)
	if err != nil {
		return nil, fmt.Errorf("ルートテーブルの構築に失敗: %w", err)
	}
	return table, nil
}

// upstreamGroup は設定された転送先に対応するグループを返す。
func (s *Server) upstreamGroup(name string) (HandlerGroup, error) {
	baseURL := s.cfg.Upstreams.URL(name)
	if baseURL == "" {
		return notConfiguredGroup, nil
	}
	group, err := NewUpstreamGroup(baseURL, s.cfg.UpstreamTimeout)
	if err != nil {
		return nil, fmt.Errorf("%sグループの生成に失敗: %w", name, err)
	}
	return group, nil
}

// protect は保護対象のグループにJWT検証を追加する。
func (s *Server) protect(r Route) Route {
	if r.Group != nil && s.cfg.IsProtected(r.Name) {
		r.Group = Protect(r.Group, middleware.RequireJWT(s.cfg.JWTSecret))
	}
	return r
}
