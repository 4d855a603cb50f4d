package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/nao1215/edugate/pkg/apperror"
)

// DefaultBodyLimit はパース対象のボディの上限サイズ（10MB）。
const DefaultBodyLimit int64 = 10 << 20

// ParsedBodyKey はパース済みボディを格納するコンテキストキー。
// JSONの場合はany（オブジェクトまたは配列）、フォームの場合はurl.Valuesが格納される。
const ParsedBodyKey = "parsed_body"

// BodyParser はJSONおよびURLエンコードされたボディをパースするポリシーを返す。
// 上限を超えるボディは413、不正な形式のボディは400として扱い、
// いずれもルートハンドラに到達させない。
// パース後はc.Request.Bodyを巻き戻すため、後続の処理は同じボディを読み取れる。
func BodyParser(limit int64) Policy {
	if limit <= 0 {
		limit = DefaultBodyLimit
	}

	return PolicyFunc{
		PolicyName: "body_parser",
		Fn: func(c *gin.Context) error {
			parse := parserFor(c.ContentType())
			if parse == nil {
				return nil
			}

			if c.Request.ContentLength > limit {
				return apperror.PayloadTooLarge(fmt.Errorf("Content-Length %d がボディ上限 %d バイトを超えています", c.Request.ContentLength, limit))
			}

			var raw []byte
			if c.Request.Body != nil && c.Request.Body != http.NoBody {
				var err error
				raw, err = io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, limit))
				if err != nil {
					var tooLarge *http.MaxBytesError
					if errors.As(err, &tooLarge) {
						return apperror.PayloadTooLarge(fmt.Errorf("ボディがボディ上限 %d バイトを超えています: %w", limit, err))
					}
					return apperror.BadRequest(fmt.Errorf("ボディの読み取りに失敗: %w", err))
				}
			}

			parsed, err := parse(raw)
			if err != nil {
				return apperror.BadRequest(err)
			}

			c.Set(ParsedBodyKey, parsed)
			c.Set(gin.BodyBytesKey, raw)
			c.Request.Body = io.NopCloser(bytes.NewReader(raw))
			c.Request.ContentLength = int64(len(raw))
			return nil
		},
	}
}

// ParsedBody はBodyParserがパースしたボディを返す。
func ParsedBody(c *gin.Context) (any, bool) {
	return c.Get(ParsedBodyKey)
}

// parserFor はContent-Typeに対応するパース関数を返す。対象外の場合はnil。
func parserFor(contentType string) func([]byte) (any, error) {
	switch {
	case contentType == binding.MIMEJSON || strings.HasSuffix(contentType, "+json"):
		return parseJSON
	case contentType == binding.MIMEPOSTForm:
		return parseForm
	default:
		return nil
	}
}

// parseJSON はJSONボディをパースする。トップレベルはオブジェクトか配列のみ受け付ける。
// 空のボディは空オブジェクトとして扱い、値の後ろに余分な入力が続くボディは不正とする。
func parseJSON(raw []byte) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return map[string]any{}, nil
	}
	if trimmed[0] != '{' && trimmed[0] != '[' {
		return nil, fmt.Errorf("JSONボディのトップレベルはオブジェクトか配列である必要があります: %q", firstChar(trimmed))
	}

	if !json.Valid(trimmed) {
		return nil, errors.New("JSONボディが構文的に正しくありません")
	}

	var v any
	if err := binding.JSON.BindBody(trimmed, &v); err != nil {
		return nil, fmt.Errorf("JSONボディのパースに失敗: %w", err)
	}
	return v, nil
}

// parseForm はURLエンコードされたボディをパースする。
func parseForm(raw []byte) (any, error) {
	values, err := url.ParseQuery(string(raw))
	if err != nil {
		return nil, fmt.Errorf("フォームボディのパースに失敗: %w", err)
	}
	return values, nil
}

// firstChar は先頭の1文字をエラーメッセージ用に返す。
func firstChar(b []byte) string {
	r := []rune(string(b))
	return string(r[0])
}
