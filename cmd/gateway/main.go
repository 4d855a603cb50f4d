// Request Gatewayのエントリポイント。
// 設定を読み込み、ポリシーチェーンとルートグループを組み立ててHTTPサーバーを起動する。
// SIGINT/SIGTERMを受け取るとグレースフルシャットダウンする。
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "エラー: %v\n", err)
		os.Exit(1)
	}
}
