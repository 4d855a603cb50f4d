// Package apperror はGatewayがクライアントに返すエラーの種別とエンベロープを提供する。
//
// すべての失敗レスポンスは {"error": string, "details"?: string} の形式に統一する。
// detailsは開発環境でのみ内部エラーのメッセージを含む。
package apperror
