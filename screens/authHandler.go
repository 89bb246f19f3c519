package screens

import (
	"errors"
	"io"
	"net/http"

	"ludoserver/middlewares"
	"ludoserver/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AuthHandler は匿名ユーザーを発行し、JWTトークンを返します。
// Authorization ヘッダーに有効なトークンがある場合は同じユーザーIDでトークンを再発行する
func AuthHandler(c *gin.Context, db *gorm.DB, logger *zap.Logger) {
	var request models.LoginRequest
	if err := c.ShouldBindJSON(&request); err != nil && !errors.Is(err, io.EOF) {
		logger.Error("Request binding error", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Request binding error"})
		return
	}

	var userID uint
	if c.GetHeader("Authorization") != "" {
		// 無効なトークンなら新規ユーザーを発行する
		userID, _ = middlewares.GetUserIDFromToken(c, logger)
	}

	if userID == 0 {
		var err error
		userID, err = middlewares.GenerateUserID(db, request.Nickname, logger)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
			return
		}
	}

	token, err := middlewares.GenerateToken(userID)
	if err != nil {
		logger.Error("Failed to generate token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "userId": userID})
}
