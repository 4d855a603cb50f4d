package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/render"
	"github.com/nao1215/edugate/pkg/apperror"
	"go.uber.org/zap"
)

// ErrorFormatter はポリシーやハンドラで発生したエラーとパニックを
// 統一されたエラーエンベロープに変換するGinミドルウェアを返す。
// devがtrueの場合のみ、内部エラーのメッセージをdetailsとして返す。
// エンベロープのシリアライズに失敗した場合はhttp.ErrAbortHandlerで接続を閉じる。
func ErrorFormatter(logger *zap.Logger, dev bool) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			if r == http.ErrAbortHandler {
				panic(r)
			}
			logger.Error("[PANIC] ハンドラでパニックが発生しました",
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
			c.Abort()
			writeError(c, logger, dev, apperror.Internal(panicError(r)))
		}()

		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		writeError(c, logger, dev, apperror.From(c.Errors.Last().Err))
	}
}

// writeError はエラーをログに記録し、エンベロープをレスポンスとして書き込む。
func writeError(c *gin.Context, logger *zap.Logger, dev bool, appErr *apperror.Error) {
	fields := []zap.Field{
		zap.String("kind", string(appErr.Kind)),
		zap.Int("status", appErr.Status),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.String("request_id", GetRequestID(c)),
	}
	if appErr.Err != nil {
		fields = append(fields, zap.Error(appErr.Err))
	}
	if appErr.Status >= http.StatusInternalServerError {
		logger.Error("リクエストの処理に失敗しました", fields...)
	} else {
		logger.Info("リクエストを拒否しました", fields...)
	}

	if c.Writer.Written() {
		// レスポンスの送信が始まっている場合はエンベロープを書き込めない
		return
	}

	c.Status(appErr.Status)
	if err := (render.JSON{Data: appErr.Envelope(dev)}).Render(c.Writer); err != nil {
		logger.Error("エラーレスポンスの書き込みに失敗したため接続を閉じます", zap.Error(err))
		panic(http.ErrAbortHandler)
	}
}

// panicError はパニック値をerrorに変換する。
func panicError(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return errors.New(fmt.Sprint(r))
}
