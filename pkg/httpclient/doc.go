// Package httpclient はGatewayから内部サービスへリクエストを転送するクライアントを提供する。
//
// 受信したリクエストのメソッド・パス・クエリ・ボディをそのまま内部サービスに送り、
// ホップバイホップヘッダーを除去したうえでX-Forwarded-*ヘッダーと
// ユーザーID・リクエストIDを付与する。
package httpclient
