package middlewares

import (
	"net/http"
	"time"

	"ludoserver/auth"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// コンテキストにセットするユーザーIDのキー
const UserIDKey = "UserID"

// トークン検証を行うミドルウェア。有効期限が1時間未満なら新しいトークンを Authorization ヘッダーで返す
func AuthMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := auth.ParseCredential(c.GetHeader("Authorization"))
		if err != nil {
			logger.Warn("認証失敗", zap.String("path", c.Request.URL.Path), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		if time.Until(time.Unix(claims.ExpiresAt, 0)) < time.Hour {
			newToken, err := GenerateToken(claims.UserID)
			if err != nil {
				logger.Error("Failed to refresh token", zap.Error(err))
			} else {
				c.Header("Authorization", newToken)
			}
		}

		c.Set(UserIDKey, claims.UserID)
		c.Next()
	}
}
