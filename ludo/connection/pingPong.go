package connection

import (
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// MaintainWebSocketConnection は送信キューの書き込みとPing送信を行う唯一の書き込みゴルーチンです。
// キューに nil が積まれた場合は CloseAfterFlush で指定されたコードの Close フレームを送って終了します。
func (c *Client) MaintainWebSocketConnection() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close() // ゴルーチンが終了する時にWebSocket接続を閉じる
	}()

	for {
		select {
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if msg == nil {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(c.pendingCloseCode(), ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.logger.Info("Error writing message", zap.Error(err))
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Info("Error sending ping", zap.Error(err))
				return // エラーが発生した場合はゴルーチンを終了
			}
		case <-c.done:
			return
		}
	}
}
