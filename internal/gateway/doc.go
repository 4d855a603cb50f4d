// Package gateway はRequest Gatewayの内部実装を提供する。
//
// すべてのリクエストにポリシーチェーン（セキュリティヘッダー、CORS、レート制限、
// ボディパース）を適用したうえで、パスのプレフィックスに一致する最初のルートグループに
// ディスパッチする。どのルートにも一致しないリクエストは404、処理中に発生した
// エラーは集中エラーフォーマッタで統一されたJSONエンベロープに変換される。
package gateway
