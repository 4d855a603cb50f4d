package main

import (
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/nao1215/edugate/internal/config"
	"github.com/nao1215/edugate/internal/gateway"
	"github.com/nao1215/edugate/pkg/logging"
	"github.com/nao1215/edugate/pkg/middleware"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// newRootCmd はGatewayを起動するルートコマンドを生成する。
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "edugate",
		Short: "学習プラットフォームAPIのRequest Gateway",
		Long: `すべてのリクエストにセキュリティヘッダー・CORS・レート制限・ボディパースを適用し、
/api/courses, /api/ai, /api/analytics, /api/progress, /api/teacher, /api/school の
各ルートグループにディスパッチする。設定は環境変数（.envも可）から読み込む。`,
		SilenceUsage: true,
		RunE:         runServe,
	}
	rootCmd.AddCommand(newTokenCmd())
	return rootCmd
}

// runServe は設定を読み込み、シグナルを受け取るまでGatewayを実行する。
func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Environment)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	server, err := gateway.NewServer(cfg, gateway.WithLogger(logger))
	if err != nil {
		logger.Error("Gatewayサーバーの初期化に失敗", zap.Error(err))
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Run(ctx); err != nil {
		logger.Error("Gatewayサーバーが異常終了しました", zap.Error(err))
		return err
	}
	return nil
}

// newTokenCmd は開発用のJWTを発行するサブコマンドを生成する。
// JWT_SECRETで保護されたルートグループを手元で試すために使う。
func newTokenCmd() *cobra.Command {
	var userID, email string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "開発用のJWTを発行する",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			token, err := issueDevToken(cfg, userID, email)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().StringVarP(&userID, "user-id", "u", "dev-user", "トークンに含めるユーザーID")
	cmd.Flags().StringVarP(&email, "email", "e", "dev@example.com", "トークンに含めるメールアドレス")
	return cmd
}

// issueDevToken は開発環境でのみJWTを発行する。
func issueDevToken(cfg config.Config, userID, email string) (string, error) {
	if !cfg.IsDevelopment() {
		return "", fmt.Errorf("開発用トークンはdevelopment環境でのみ発行できます: APP_ENV=%s", cfg.Environment)
	}
	if cfg.JWTSecret == "" {
		return "", errors.New("JWT_SECRETが設定されていません")
	}
	if userID == "" {
		return "", errors.New("ユーザーIDが空です")
	}
	return middleware.GenerateJWT(cfg.JWTSecret, userID, email)
}
