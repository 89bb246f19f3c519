package actions

import (
	"context"

	"ludoserver/ludo/connection"
	"ludoserver/ludo/protocol"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

func (h *Handler) handleAuth(ctx context.Context, client *connection.Client, msg protocol.Message) (sessionState, error) {
	var req protocol.Auth
	if err := msg.Into(&req); err != nil {
		return awaitingAuth, err
	}
	if err := protocol.Validate(req); err != nil {
		return awaitingAuth, err
	}

	playerID, err := h.Auth.Authenticate(ctx, req.Credential)
	if err != nil {
		// 認証失敗は AUTH_RESULT で返してから切断する
		client.Logger().Info("Authentication failed", zap.Error(err))
		if err := client.SendMessage(protocol.TypeAuthResult, protocol.AuthResult{Success: false, Error: "invalid credential"}); err != nil {
			return awaitingAuth, err
		}
		client.CloseAfterFlush(websocket.CloseNormalClosure)
		return -1, nil
	}

	client.SetPlayerID(playerID)
	client.Logger().Info("Client authenticated", zap.String("playerID", playerID))
	if err := client.SendMessage(protocol.TypeAuthResult, protocol.AuthResult{Success: true, UserID: playerID}); err != nil {
		return authenticated, err
	}
	return authenticated, nil
}
