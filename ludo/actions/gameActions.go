package actions

import (
	"ludoserver/ludo/connection"
	"ludoserver/ludo/protocol"
	"ludoserver/ludo/registry"

	"go.uber.org/zap"
)

// 参加中のルーム。終了後に破棄されていれば未参加の状態に戻す
func (h *Handler) room(client *connection.Client) (*registry.Room, error) {
	room, ok := h.Registry.Get(client.RoomCode())
	if !ok {
		return nil, protocol.Wrap(protocol.CodeRoomNotFound, "room was closed", registry.ErrRoomNotFound)
	}
	return room, nil
}

func (h *Handler) handleRollDice(client *connection.Client) (sessionState, error) {
	room, err := h.room(client)
	if err != nil {
		return authenticated, err
	}
	res, err := room.Roll(client.PlayerID())
	if err != nil {
		return joined, toProtocolError(err)
	}
	client.Logger().Info("Dice rolled", zap.String("roomCode", room.Code()), zap.Int("value", res.Value), zap.Ints("movable", res.Movable), zap.Bool("turnPassed", res.TurnPassed))
	return joined, nil
}

func (h *Handler) handleMoveToken(client *connection.Client, msg protocol.Message) (sessionState, error) {
	var req protocol.MoveToken
	if err := msg.Into(&req); err != nil {
		return joined, err
	}

	// 範囲外のトークンIDはエンジンが INVALID_TOKEN として拒否する
	room, err := h.room(client)
	if err != nil {
		return authenticated, err
	}
	res, err := room.Move(client.PlayerID(), req.TokenID)
	if err != nil {
		return joined, toProtocolError(err)
	}
	client.Logger().Info("Token moved",
		zap.String("roomCode", room.Code()),
		zap.Int("tokenID", res.TokenID),
		zap.Int("from", res.From),
		zap.Int("to", res.To),
		zap.Int("captured", len(res.Captured)),
		zap.Bool("won", res.Won),
	)
	return joined, nil
}

func (h *Handler) handleStartGame(client *connection.Client) (sessionState, error) {
	room, err := h.room(client)
	if err != nil {
		return authenticated, err
	}
	if err := room.Start(client.PlayerID()); err != nil {
		return joined, toProtocolError(err)
	}
	client.Logger().Info("Game started", zap.String("roomCode", room.Code()))
	return joined, nil
}
