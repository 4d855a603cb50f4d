package middleware

import (
	"github.com/gin-gonic/gin"
)

// Policy はすべてのリクエストに適用される横断的な処理。
// Processがnilを返した場合は次のポリシーへ進み、エラーを返した場合は
// 以降の処理を打ち切ってエラーフォーマッタに委ねる。
// レスポンスを自ら完了させる場合（CORSのプリフライト等）はコンテキストを中断する。
type Policy interface {
	// Name はメトリクスやログに使うポリシー名を返す。
	Name() string
	// Process はリクエストを処理する。
	Process(c *gin.Context) error
}

// PolicyFunc は関数をPolicyとして扱うためのアダプタ。
type PolicyFunc struct {
	// PolicyName はポリシー名。
	PolicyName string
	// Fn はリクエストを処理する関数。
	Fn func(c *gin.Context) error
}

// Name はPolicyインターフェースを実装する。
func (p PolicyFunc) Name() string { return p.PolicyName }

// Process はPolicyインターフェースを実装する。
func (p PolicyFunc) Process(c *gin.Context) error { return p.Fn(c) }

// Chain は順序付きのポリシー列。生成後は変更できない。
type Chain struct {
	policies []Policy
}

// NewChain は指定された順序でポリシーを実行するChainを生成する。
func NewChain(policies ...Policy) *Chain {
	ps := make([]Policy, len(policies))
	copy(ps, policies)
	return &Chain{policies: ps}
}

// Names はポリシー名を実行順に返す。
func (ch *Chain) Names() []string {
	names := make([]string, len(ch.policies))
	for i, p := range ch.policies {
		names[i] = p.Name()
	}
	return names
}

// Handler はポリシーを順に実行するGinミドルウェアを返す。
// onRejectが指定されている場合、リクエストを拒否したポリシー名で呼び出す。
func (ch *Chain) Handler(onReject func(policy string)) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, p := range ch.policies {
			if err := p.Process(c); err != nil {
				if onReject != nil {
					onReject(p.Name())
				}
				_ = c.Error(err)
				c.Abort()
				return
			}
			if c.IsAborted() {
				return
			}
		}
		c.Next()
	}
}
