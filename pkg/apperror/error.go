package apperror

import (
	"errors"
	"net/http"
)

// Kind はエラーの種別を表す。
type Kind string

const (
	// KindBadRequest は不正な入力（パースできないJSONボディ等）を表す。
	KindBadRequest Kind = "bad_request"
	// KindUnauthorized は認証トークンの欠落・不正を表す。
	KindUnauthorized Kind = "unauthorized"
	// KindPayloadTooLarge はボディサイズが上限を超えたことを表す。
	KindPayloadTooLarge Kind = "payload_too_large"
	// KindRateLimited はクライアントがリクエスト上限を超えたことを表す。
	KindRateLimited Kind = "rate_limited"
	// KindNotFound は一致するルートが無いことを表す。
	KindNotFound Kind = "not_found"
	// KindBadGateway は内部サービスとの通信に失敗したことを表す。
	KindBadGateway Kind = "bad_gateway"
	// KindInternal はハンドラやポリシーで捕捉されなかった失敗を表す。
	KindInternal Kind = "internal"
)

// クライアントに返す固定メッセージ。
const (
	MessageBadRequest      = "Invalid request body"
	MessageUnauthorized    = "Unauthorized"
	MessagePayloadTooLarge = "Payload too large"
	MessageRateLimited     = "Too many requests, please try again later."
	MessageNotFound        = "Route not found"
	MessageBadGateway      = "Upstream service unavailable"
	MessageInternal        = "Something went wrong!"
)

// Error はクライアントに公開するエラー。
// Messageは常に公開してよい文字列であり、Errは内部の原因を保持する。
type Error struct {
	// Kind はエラーの種別。
	Kind Kind
	// Status はレスポンスのHTTPステータスコード。
	Status int
	// Message はクライアントに返すメッセージ。
	Message string
	// Err は内部の原因。開発環境でのみdetailsとして公開される。
	Err error
}

// Error はerrorインターフェースを実装する。
func (e *Error) Error() string {
	if e.Err != nil {
		return string(e.Kind) + ": " + e.Message + ": " + e.Err.Error()
	}
	return string(e.Kind) + ": " + e.Message
}

// Unwrap は内部の原因を返す。
func (e *Error) Unwrap() error {
	return e.Err
}

// Envelope はエラーレスポンスのJSON形式。
type Envelope struct {
	// Error はクライアント向けのメッセージ。
	Error string `json:"error"`
	// Details は開発環境でのみ設定される内部エラーの詳細。
	Details string `json:"details,omitempty"`
}

// Envelope はエラーをレスポンス用のエンベロープに変換する。
// devがtrueかつ内部の原因がある場合のみDetailsを設定する。
func (e *Error) Envelope(dev bool) Envelope {
	env := Envelope{Error: e.Message}
	if dev && e.Err != nil {
		env.Details = e.Err.Error()
	}
	return env
}

// BadRequest は不正な入力を表すエラーを生成する。
func BadRequest(err error) *Error {
	return &Error{Kind: KindBadRequest, Status: http.StatusBadRequest, Message: MessageBadRequest, Err: err}
}

// Unauthorized は認証失敗を表すエラーを生成する。
// msgが空の場合は既定のメッセージを使う。
func Unauthorized(msg string) *Error {
	if msg == "" {
		msg = MessageUnauthorized
	}
	return &Error{Kind: KindUnauthorized, Status: http.StatusUnauthorized, Message: msg}
}

// PayloadTooLarge はボディサイズ超過を表すエラーを生成する。
func PayloadTooLarge(err error) *Error {
	return &Error{Kind: KindPayloadTooLarge, Status: http.StatusRequestEntityTooLarge, Message: MessagePayloadTooLarge, Err: err}
}

// RateLimited はレート制限超過を表すエラーを生成する。
func RateLimited() *Error {
	return &Error{Kind: KindRateLimited, Status: http.StatusTooManyRequests, Message: MessageRateLimited}
}

// NotFound はルート不一致を表すエラーを生成する。
func NotFound() *Error {
	return &Error{Kind: KindNotFound, Status: http.StatusNotFound, Message: MessageNotFound}
}

// BadGateway は内部サービスとの通信失敗を表すエラーを生成する。
func BadGateway(err error) *Error {
	return &Error{Kind: KindBadGateway, Status: http.StatusBadGateway, Message: MessageBadGateway, Err: err}
}

// Internal は捕捉されなかった失敗を表すエラーを生成する。
func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Status: http.StatusInternalServerError, Message: MessageInternal, Err: err}
}

// From はerrから公開用のエラーを取り出す。
// ラップされた*Errorがあればその種別とステータスを保ち、無ければinternalとして扱う。
func From(err error) *Error {
	if err == nil {
		return Internal(nil)
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal(err)
}
