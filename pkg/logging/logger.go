// Package logging はGatewayで使用する構造化ロガーを生成する。
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// New は実行環境に応じたzapロガーを生成する。
// development環境では人間が読みやすいコンソール形式、それ以外ではJSON形式で出力する。
func New(environment string) (*zap.Logger, error) {
	var cfg zap.Config
	if strings.EqualFold(strings.TrimSpace(environment), "development") {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}

	logger, err := cfg.Build(zap.Fields(zap.String("environment", environment)))
	if err != nil {
		return nil, fmt.Errorf("ロガーの生成に失敗: %w", err)
	}
	return logger, nil
}
