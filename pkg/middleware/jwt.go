package middleware

import (
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/nao1215/edugate/pkg/apperror"
)

// JWTClaims はJWTトークンのクレーム（ペイロード）を表す。
// ユーザーID等の情報を内部サービスに伝播するために使用する。
type JWTClaims struct {
	jwt.RegisteredClaims
	// UserID は認証済みユーザーの一意識別子。
	UserID string `json:"user_id"`
	// Email はユーザーのメールアドレス。
	Email string `json:"email"`
}

const (
	// headerKeyUserID はユーザーIDを内部サービスに伝播するためのHTTPヘッダーキー。
	headerKeyUserID = "X-User-ID"
	// contextKeyUserID はGinコンテキストにユーザーIDを格納するキー。
	contextKeyUserID = "user_id"
	// contextKeyEmail はGinコンテキストにメールアドレスを格納するキー。
	contextKeyEmail = "email"
	// jwtIssuer はトークンの発行者。
	jwtIssuer = "edugate"
)

// GenerateJWT はユーザー情報からJWTトークンを生成する。
func GenerateJWT(secret, userID, email string) (string, error) {
	claims := JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    jwtIssuer,
		},
		UserID: userID,
		Email:  email,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("JWTトークンの署名に失敗: %w", err)
	}
	return signed, nil
}

// RequireJWT はJWTトークンを検証するポリシーを返す。
// 検証に成功した場合、コンテキストに "user_id" と "email" を設定する。
// ルートグループ単位で認証を要求するために使う。
func RequireJWT(secret string) Policy {
	return PolicyFunc{
		PolicyName: "jwt_auth",
		Fn: func(c *gin.Context) error {
			authHeader := c.GetHeader("Authorization")
			if authHeader == "" {
				return apperror.Unauthorized("Authorizationヘッダーが必要です")
			}

			tokenString, found := strings.CutPrefix(authHeader, "Bearer ")
			if !found {
				return apperror.Unauthorized("Bearer トークン形式が不正です")
			}

			claims := &JWTClaims{}
			token, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
				return []byte(secret), nil
			}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
			if err != nil || !token.Valid {
				return apperror.Unauthorized("トークンが無効です")
			}

			c.Set(contextKeyUserID, claims.UserID)
			c.Set(contextKeyEmail, claims.Email)
			c.Header(headerKeyUserID, claims.UserID)
			return nil
		},
	}
}

// GetUserID はGinコンテキストからユーザーIDを取得する。
// RequireJWTポリシーが事前に適用されていない場合は空文字列を返す。
func GetUserID(c *gin.Context) string {
	userID, _ := c.Get(contextKeyUserID)
	if id, ok := userID.(string); ok {
		return id
	}
	return ""
}
