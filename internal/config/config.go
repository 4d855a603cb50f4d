// Package config はGatewayの設定を環境変数から読み込む。
//
// 設定はLoadで一度だけ読み込まれ、以降はConfig値として明示的に受け渡される。
// Load以外の場所で環境変数を参照してはならない。
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// 環境名。
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// ルートグループ名。登録順に並んでいる。
const (
	GroupCourses   = "courses"
	GroupAI        = "ai"
	GroupAnalytics = "analytics"
	GroupProgress  = "progress"
	GroupTeacher   = "teacher"
	GroupSchool    = "school"
)

// GroupNames はルートグループ名を登録順に返す。
func GroupNames() []string {
	return []string{GroupCourses, GroupAI, GroupAnalytics, GroupProgress, GroupTeacher, GroupSchool}
}

// Config はGatewayの設定。Load後は変更しない。
type Config struct {
	// Port は待ち受けポート。
	Port int `env:"PORT" envDefault:"3000"`
	// Host は待ち受けアドレス。
	Host string `env:"HOST" envDefault:"0.0.0.0"`
	// Environment は実行環境名（development / production など）。
	// APP_ENVが無い場合はNODE_ENV、どちらも無い場合はdevelopmentになる。
	Environment string `env:"APP_ENV"`
	// NodeEnv は既存のデプロイ設定との互換のために読み込むNODE_ENV。
	NodeEnv string `env:"NODE_ENV"`

	// CORSOrigin はクロスオリジンリクエストを許可するオリジン。カンマ区切りで複数指定できる。
	CORSOrigin string `env:"CORS_ORIGIN" envDefault:"http://localhost:3000"`
	// CORSCredentials はCookieや認証ヘッダー付きのクロスオリジンリクエストを許可するかどうか。
	CORSCredentials bool `env:"CORS_CREDENTIALS" envDefault:"true"`

	// BodyLimit はパースするボディの上限バイト数。
	BodyLimit int64 `env:"BODY_LIMIT_BYTES" envDefault:"10485760"`

	// RateLimitEnabled はレート制限を有効にするかどうか。
	RateLimitEnabled bool `env:"RATE_LIMIT_ENABLED" envDefault:"false"`
	// RateLimitWindow はレート制限のウィンドウ幅。
	RateLimitWindow time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"15m"`
	// RateLimitMax はウィンドウあたりのクライアントごとの上限。
	RateLimitMax int `env:"RATE_LIMIT_MAX" envDefault:"100"`
	// RedisURL はレート制限のカウンタを共有するRedisのURL。空の場合はプロセス内で数える。
	RedisURL string `env:"REDIS_URL"`

	// TrustedProxies はX-Forwarded-Forを信頼するプロキシのIPまたはCIDR。
	TrustedProxies []string `env:"TRUSTED_PROXIES" envSeparator:","`

	// JWTSecret はBearerトークンの検証に使う共有シークレット。
	JWTSecret string `env:"JWT_SECRET"`
	// ProtectedGroups は有効なJWTを要求するルートグループ名。
	ProtectedGroups []string `env:"AUTH_PROTECTED_GROUPS" envSeparator:","`

	// Upstreams は各ルートグループの転送先サービス。
	Upstreams Upstreams

	// UpstreamTimeout は内部サービスへの1リクエストあたりのタイムアウト。
	UpstreamTimeout time.Duration `env:"UPSTREAM_TIMEOUT" envDefault:"30s"`
	// ShutdownTimeout はグレースフルシャットダウンの待ち時間。
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	// MetricsEnabled はGET /metricsを公開するかどうか。
	MetricsEnabled bool `env:"METRICS_ENABLED" envDefault:"true"`
}

// Upstreams は各ルートグループの転送先サービスのベースURL。
// 空のグループはどのリクエストも処理せず、404にフォールスルーする。
type Upstreams struct {
	Courses   string `env:"COURSES_SERVICE_URL"`
	AI        string `env:"AI_SERVICE_URL"`
	Analytics string `env:"ANALYTICS_SERVICE_URL"`
	Progress  string `env:"PROGRESS_SERVICE_URL"`
	Teacher   string `env:"TEACHER_SERVICE_URL"`
	School    string `env:"SCHOOL_SERVICE_URL"`
}

// URL はグループ名に対応する転送先のベースURLを返す。
func (u Upstreams) URL(group string) string {
	switch group {
	case GroupCourses:
		return u.Courses
	case GroupAI:
		return u.AI
	case GroupAnalytics:
		return u.Analytics
	case GroupProgress:
		return u.Progress
	case GroupTeacher:
		return u.Teacher
	case GroupSchool:
		return u.School
	default:
		return ""
	}
}

// Load はカレントディレクトリの.env（存在する場合）と環境変数から設定を読み込み、検証する。
// .envより既存の環境変数が優先される。
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf(".envファイルの読み込みに失敗: %w", err)
	}
	return parse(env.Options{})
}

// LoadFrom は指定された環境変数の集合から設定を読み込み、検証する。
// プロセスの環境変数は参照しない。
func LoadFrom(environ map[string]string) (Config, error) {
	if environ == nil {
		environ = map[string]string{}
	}
	return parse(env.Options{Environment: environ})
}

func parse(opts env.Options) (Config, error) {
	cfg, err := env.ParseAsWithOptions[Config](opts)
	if err != nil {
		return Config{}, fmt.Errorf("環境変数のパースに失敗: %w", err)
	}
	if cfg.Environment == "" {
		cfg.Environment = cfg.NodeEnv
	}
	if cfg.Environment == "" {
		cfg.Environment = EnvDevelopment
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate は設定値の整合性を検証する。
func (c Config) Validate() error {
	var errs []error

	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORTは1から65535の範囲で指定してください: %d", c.Port))
	}
	if c.BodyLimit <= 0 {
		errs = append(errs, fmt.Errorf("BODY_LIMIT_BYTESは正の値を指定してください: %d", c.BodyLimit))
	}
	if c.RateLimitWindow <= 0 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_WINDOWは正の値を指定してください: %s", c.RateLimitWindow))
	}
	if c.RateLimitMax <= 0 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_MAXは正の値を指定してください: %d", c.RateLimitMax))
	}
	if c.UpstreamTimeout <= 0 {
		errs = append(errs, fmt.Errorf("UPSTREAM_TIMEOUTは正の値を指定してください: %s", c.UpstreamTimeout))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Errorf("SHUTDOWN_TIMEOUTは正の値を指定してください: %s", c.ShutdownTimeout))
	}
	if len(c.AllowedOrigins()) == 0 {
		errs = append(errs, errors.New("CORS_ORIGINに少なくとも1つのオリジンを指定してください"))
	}

	for _, group := range GroupNames() {
		raw := c.Upstreams.URL(group)
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("%sグループの転送先URLが不正です: %q", group, raw))
		}
	}

	for _, p := range c.Proxies() {
		if net.ParseIP(p) != nil {
			continue
		}
		if _, _, err := net.ParseCIDR(p); err != nil {
			errs = append(errs, fmt.Errorf("TRUSTED_PROXIESの値が不正です: %q", p))
		}
	}

	groups := c.protectedGroups()
	for _, g := range groups {
		if !slices.Contains(GroupNames(), g) {
			errs = append(errs, fmt.Errorf("AUTH_PROTECTED_GROUPSに未知のグループが指定されています: %q", g))
		}
	}
	if len(groups) > 0 && c.JWTSecret == "" {
		errs = append(errs, errors.New("AUTH_PROTECTED_GROUPSを指定する場合はJWT_SECRETが必要です"))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("設定が不正です: %w", err)
	}
	return nil
}

// IsDevelopment は開発環境かどうかを返す。
// 開発環境ではエラーレスポンスに内部エラーの詳細を含める。
func (c Config) IsDevelopment() bool {
	return strings.EqualFold(c.Environment, EnvDevelopment)
}

// Addr は待ち受けアドレスを "host:port" 形式で返す。
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// AllowedOrigins はCORS_ORIGINを分割し、空白を除いたオリジンの一覧を返す。
func (c Config) AllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.CORSOrigin, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// IsProtected はグループが有効なJWTを要求するかどうかを返す。
func (c Config) IsProtected(group string) bool {
	return slices.Contains(c.protectedGroups(), group)
}

// Proxies はTRUSTED_PROXIESの空白を除いた一覧を返す。
func (c Config) Proxies() []string {
	var proxies []string
	for _, p := range c.TrustedProxies {
		if p = strings.TrimSpace(p); p != "" {
			proxies = append(proxies, p)
		}
	}
	return proxies
}

func (c Config) protectedGroups() []string {
	var groups []string
	for _, g := range c.ProtectedGroups {
		if g = strings.TrimSpace(g); g != "" {
			groups = append(groups, g)
		}
	}
	return groups
}
