package actions

import (
	"context"

	"ludoserver/ludo/connection"
	"ludoserver/ludo/protocol"

	"go.uber.org/zap"
)

// handleJoinRoom はプレイヤーをルームに着席させます。
// 購読を先に登録するので、参加によるスナップショットは参加者本人にも届く
func (h *Handler) handleJoinRoom(ctx context.Context, client *connection.Client, msg protocol.Message) (sessionState, error) {
	var req protocol.JoinRoom
	if err := msg.Into(&req); err != nil {
		return authenticated, err
	}
	req.RoomCode = protocol.NormalizeRoomCode(req.RoomCode)
	if err := protocol.Validate(req); err != nil {
		return authenticated, err
	}

	playerID := client.PlayerID()
	h.Hub.Subscribe(req.RoomCode, client)
	_, color, err := h.Registry.Join(ctx, req.RoomCode, playerID)
	if err != nil {
		h.Hub.Unsubscribe(req.RoomCode, client)
		return authenticated, toProtocolError(err)
	}

	client.SetRoomCode(req.RoomCode)
	client.Logger().Info("Client joined room", zap.String("roomCode", req.RoomCode), zap.String("playerID", playerID), zap.String("color", string(color)))
	return joined, nil
}
