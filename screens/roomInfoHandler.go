package screens

import (
	"context"
	"errors"
	"net/http"

	"ludoserver/ludo/database"
	"ludoserver/ludo/engine"
	"ludoserver/ludo/protocol"
	"ludoserver/ludo/registry"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SnapshotSource は保存済みのスナップショットを読む
type SnapshotSource interface {
	Latest(ctx context.Context, code string) (engine.Snapshot, error)
}

// RoomInfoHandler はルームの最新スナップショットを返します。
// 稼働中のルームがあればそれを、無ければ保存済みのものを返す
func RoomInfoHandler(c *gin.Context, rooms *registry.Registry, archive SnapshotSource, logger *zap.Logger) {
	code := protocol.NormalizeRoomCode(c.Param("code"))
	if err := protocol.Validate(protocol.JoinRoom{RoomCode: code}); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid room code"})
		return
	}

	if room, ok := rooms.Get(code); ok {
		c.JSON(http.StatusOK, room.Snapshot())
		return
	}

	snap, err := archive.Latest(c.Request.Context(), code)
	if errors.Is(err, database.ErrSnapshotNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Room not found"})
		return
	}
	if err != nil {
		logger.Error("Failed to load snapshot", zap.String("roomCode", code), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load room"})
		return
	}
	c.JSON(http.StatusOK, snap)
}
