package utils

import (
	"fmt"
	"time"

	"ludoserver/middlewares"
	"ludoserver/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// InitLogger は設定のログレベルと出力形式でロガーを作成します。
func InitLogger(config models.Config) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if config.LogDevelopment {
		zc = zap.NewDevelopmentConfig()
	}
	if config.LogLevel != "" {
		level, err := zapcore.ParseLevel(config.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", config.LogLevel, err)
		}
		zc.Level = zap.NewAtomicLevelAt(level)
	}
	return zc.Build(zap.Fields(zap.String("service", "ludoserver")))
}

// RequestLogger は Gin のミドルウェアで、リクエストごとに1行ログを出します。
// ルームコードと認証済みユーザーIDがあれば一緒に記録する
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("clientIP", c.ClientIP()),
		}
		if code := c.Param("code"); code != "" {
			fields = append(fields, zap.String("roomCode", code))
		}
		if userID := c.GetUint(middlewares.UserIDKey); userID != 0 {
			fields = append(fields, zap.Uint("userID", userID))
		}

		switch status := c.Writer.Status(); {
		case status >= 500:
			logger.Error("request", fields...)
		case status >= 400:
			logger.Warn("request", fields...)
		default:
			logger.Info("request", fields...)
		}
	}
}
