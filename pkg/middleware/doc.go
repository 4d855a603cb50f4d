// Package middleware はGatewayのリクエスト処理に使う共通ミドルウェアとポリシーを提供する。
//
// セキュリティヘッダー、CORS、レート制限、ボディパースの各ポリシーは
// Chainによって固定の順序で1つのループから実行される。
// リクエストID、アクセスログ、メトリクス、エラーフォーマッタ、JWT認証など
// ポリシーチェーンの外側で使うGinミドルウェアも含む。
package middleware
