// Package ratelimit はクライアント単位の固定ウィンドウ型レートリミッタを提供する。
//
// 無効化されたリミッタ、インメモリのリミッタ、Redisで複数プロセス間の
// カウンタを共有するリミッタを同じLimiterインターフェースで扱える。
package ratelimit
