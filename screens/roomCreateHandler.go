package screens

import (
	"context"
	"net/http"

	"ludoserver/middlewares"
	"ludoserver/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RoomCreator はルームの行を作成する
type RoomCreator interface {
	CreateRoom(ctx context.Context, creatorID uint) (models.GameRoom, error)
}

// RoomCreateHandler は新しいルームコードを発行します。AuthMiddleware の後ろで使う
func RoomCreateHandler(c *gin.Context, rooms RoomCreator, logger *zap.Logger) {
	userID := c.GetUint(middlewares.UserIDKey)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	room, err := rooms.CreateRoom(c.Request.Context(), userID)
	if err != nil {
		logger.Error("Failed to create room", zap.Uint("userID", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create room"})
		return
	}

	logger.Info("Room created", zap.String("roomCode", room.Code), zap.Uint("userID", userID))
	c.JSON(http.StatusCreated, gin.H{"roomCode": room.Code})
}
