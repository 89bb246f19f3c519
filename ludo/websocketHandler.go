// Package ludo はゲームサーバーの WebSocket エンドポイントです。
package ludo

import (
	"context"
	"net/http"

	"ludoserver/ludo/actions"
	"ludoserver/ludo/connection"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// NewUpgrader は許可されたオリジンだけを受け付ける Upgrader を作ります。空なら全て許可
func NewUpgrader(allowedOrigins []string) websocket.Upgrader {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return len(allowed) == 0 || origin == "" || allowed[origin]
		},
	}
}

// WebSocket接続へのアップグレードを行う関数。接続が閉じるまで戻らない
func HandleConnections(ctx context.Context, w http.ResponseWriter, r *http.Request, handler *actions.Handler, upgrader websocket.Upgrader, logger *zap.Logger) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade が失敗した場合はすでにHTTPエラーが返されている
		logger.Error("Error upgrading WebSocket", zap.Error(err))
		return
	}

	client := connection.NewClient(conn, logger)
	client.Logger().Info("New client connected", zap.String("remoteAddr", r.RemoteAddr))

	go client.MaintainWebSocketConnection()
	handler.HandleClient(ctx, client)

	client.Logger().Info("Client removed", zap.String("playerID", client.PlayerID()))
}
