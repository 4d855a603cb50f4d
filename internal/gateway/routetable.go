package gateway

import (
	"errors"
	"fmt"
	"strings"
)

// Route はパスのプレフィックスとルートグループの対応。
type Route struct {
	// Name はグループ名（例: "courses"）。
	Name string
	// Prefix はグループがマウントされるパスのプレフィックス（例: "/api/courses"）。
	Prefix string
	// Group はリクエストを処理するルートグループ。
	Group HandlerGroup
}

// RouteTable は登録順に並んだルートの一覧。生成後は変更できない。
type RouteTable struct {
	routes []Route
}

// NewRouteTable はルートを検証し、登録順を保ったRouteTableを生成する。
// プレフィックスは "/" で始まる必要があり、名前とプレフィックスの重複は許されない。
func NewRouteTable(routes ...Route) (*RouteTable, error) {
	seenPrefix := make(map[string]struct{}, len(routes))
	seenName := make(map[string]struct{}, len(routes))
	table := make([]Route, 0, len(routes))

	for _, r := range routes {
		if r.Name == "" {
			return nil, errors.New("ルート名が空です")
		}
		if !strings.HasPrefix(r.Prefix, "/") {
			return nil, fmt.Errorf("ルート %q のプレフィックスは \"/\" で始まる必要があります: %q", r.Name, r.Prefix)
		}
		if r.Prefix != "/" {
			r.Prefix = strings.TrimRight(r.Prefix, "/")
		}
		if r.Group == nil {
			return nil, fmt.Errorf("ルート %q のグループがnilです", r.Name)
		}
		if _, ok := seenPrefix[r.Prefix]; ok {
			return nil, fmt.Errorf("プレフィックス %q が重複しています", r.Prefix)
		}
		if _, ok := seenName[r.Name]; ok {
			return nil, fmt.Errorf("ルート名 %q が重複しています", r.Name)
		}
		seenPrefix[r.Prefix] = struct{}{}
		seenName[r.Name] = struct{}{}
		table = append(table, r)
	}
	return &RouteTable{routes: table}, nil
}

// Match はpathに一致する最初のルートを返す。
// プレフィックスとpathが等しいか、pathがプレフィックスと "/" で始まる場合に一致する。
// "/api/courses" は "/api/courses-archive" には一致しない。
func (t *RouteTable) Match(path string) (Route, bool) {
	for _, r := range t.routes {
		if matchPrefix(r.Prefix, path) {
			return r, true
		}
	}
	return Route{}, false
}

// Prefixes はプレフィックスを登録順に返す。
func (t *RouteTable) Prefixes() []string {
	prefixes := make([]string, len(t.routes))
	for i, r := range t.routes {
		prefixes[i] = r.Prefix
	}
	return prefixes
}

func matchPrefix(prefix, path string) bool {
	if prefix == "/" {
		return strings.HasPrefix(path, "/")
	}
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	return len(path) == len(prefix) || path[len(prefix)] == '/'
}
