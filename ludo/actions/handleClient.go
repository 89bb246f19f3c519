// Package actions はクライアントから届いたインテントを読み取り、ルームに振り分けます。
package actions

import (
	"context"
	"errors"

	"ludoserver/ludo/broadcast"
	"ludoserver/ludo/connection"
	"ludoserver/ludo/engine"
	"ludoserver/ludo/protocol"
	"ludoserver/ludo/registry"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// 接続ごとのハンドシェイク状態
type sessionState int

const (
	awaitingAuth sessionState = iota
	authenticated
	joined
)

// Handler は接続をルームに結びつけるための依存関係
type Handler struct {
	Registry *registry.Registry
	Hub      *broadcast.Hub
	Auth     connection.Authenticator
	Logger   *zap.Logger
}

// HandleClient はクライアントごとにメッセージを読み取ります。接続が切れるまで戻らない
func (h *Handler) HandleClient(ctx context.Context, client *connection.Client) {
	logger := client.Logger()
	state := awaitingAuth
	defer func() {
		h.leave(client, state)
		client.CloseAfterFlush(websocket.CloseNormalClosure)
	}()

	for {
		message, err := client.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Info("WebSocket closed unexpectedly", zap.Error(err))
			}
			return
		}

		next, err := h.dispatch(ctx, client, state, message)
		if err != nil {
			perr := protocol.AsError(err)
			if perr.Code == protocol.CodeInternal {
				logger.Error("Failed to handle message", zap.Error(err))
			} else {
				logger.Info("Rejected message", zap.String("code", perr.Code), zap.String("message", perr.Message))
			}
			client.SendError(perr)
			if perr.Fatal {
				return
			}
		}
		if next < 0 {
			return
		}
		state = next
	}
}

// dispatch はメッセージタイプと現在の状態に応じて処理を振り分け、次の状態を返します。
// 負の状態は接続を終了することを表す
func (h *Handler) dispatch(ctx context.Context, client *connection.Client, state sessionState, data []byte) (sessionState, error) {
	msg, err := protocol.Decode(data)
	if err != nil {
		return state, err
	}

	switch state {
	case awaitingAuth:
		if msg.Type != protocol.TypeAuth {
			return state, protocol.NewError(protocol.CodeProtocolViolation, "AUTH is required before "+string(msg.Type))
		}
		return h.handleAuth(ctx, client, msg)
	case authenticated:
		switch msg.Type {
		case protocol.TypeJoinRoom:
			return h.handleJoinRoom(ctx, client, msg)
		case protocol.TypeAuth:
			return state, protocol.NewError(protocol.CodeProtocolViolation, "already authenticated")
		default:
			return state, protocol.NewError(protocol.CodeProtocolViolation, "JOIN_ROOM is required before "+string(msg.Type))
		}
	case joined:
		switch msg.Type {
		case protocol.TypeRollDice:
			return h.handleRollDice(client)
		case protocol.TypeMoveToken:
			return h.handleMoveToken(client, msg)
		case protocol.TypeStartGame:
			return h.handleStartGame(client)
		case protocol.TypeJoinRoom:
			return state, protocol.NewError(protocol.CodeProtocolViolation, "already joined room "+client.RoomCode())
		case protocol.TypeAuth:
			return state, protocol.NewError(protocol.CodeProtocolViolation, "already authenticated")
		}
	}
	return state, protocol.NewError(protocol.CodeProtocolViolation, "unknown message type "+string(msg.Type))
}

// ルームを離れる。同じプレイヤーの別の接続が残っていれば切断扱いにしない
func (h *Handler) leave(client *connection.Client, state sessionState) {
	if state != joined {
		return
	}
	code := client.RoomCode()
	if h.Hub.Unsubscribe(code, client) {
		return
	}
	h.Registry.Leave(code, client.PlayerID())
	client.Logger().Info("Player disconnected", zap.String("roomCode", code), zap.String("playerID", client.PlayerID()))
}

// ルール違反は違反したクライアントにだけ返す。メッセージにはサブコードを載せる
func toProtocolError(err error) error {
	var rv *engine.RuleViolation
	if errors.As(err, &rv) {
		return protocol.Wrap(protocol.CodeRuleViolation, rv.Code, err)
	}
	if errors.Is(err, registry.ErrRoomNotFound) {
		return protocol.Wrap(protocol.CodeRoomNotFound, "room not found", err)
	}
	return err
}
