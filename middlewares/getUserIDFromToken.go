package middlewares

import (
	"ludoserver/auth"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// リクエストからJWTトークンを取得し、ユーザーIDを解析して返します。
func GetUserIDFromToken(c *gin.Context, logger *zap.Logger) (uint, error) {
	claims, err := auth.ParseCredential(c.GetHeader("Authorization"))
	if err != nil {
		logger.Warn("Failed to parse JWT token", zap.Error(err))
		return 0, err
	}
	return claims.UserID, nil
}
