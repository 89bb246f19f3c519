// Package connection はサーバー側の WebSocket 接続1本分を管理します。
package connection

import (
	"sync"
	"time"

	"ludoserver/ludo/protocol"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second // 60秒の読み取りデッドライン
	pingPeriod   = 10 * time.Second // 10秒ごとにPingを送信
	sendBuffer   = 32
	maxFrameSize = 4096
)

// Client はWebSocketクライアント。書き込みは MaintainWebSocketConnection のゴルーチンだけが行う
type Client struct {
	ID     string // ログ用の接続ID
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	once   sync.Once
	logger *zap.Logger

	mu        sync.Mutex
	playerID  string
	roomCode  string
	closeCode int // 最初に要求された Close フレームのコード
}

func NewClient(conn *websocket.Conn, logger *zap.Logger) *Client {
	id := uuid.New().String()
	c := &Client{
		ID:     id,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
		logger: logger.With(zap.String("connID", id)),
	}
	conn.SetReadLimit(maxFrameSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	// Pongハンドラの設定: Pongメッセージを受信したら読み取りデッドラインを更新
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	return c
}

func (c *Client) Logger() *zap.Logger { return c.logger }

func (c *Client) PlayerID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playerID
}

func (c *Client) RoomCode() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roomCode
}

func (c *Client) SetPlayerID(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.playerID = id
}

func (c *Client) SetRoomCode(code string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roomCode = code
}

// ReadMessage は次のテキストフレームを読みます。読み取りは1つのゴルーチンからのみ
func (c *Client) ReadMessage() ([]byte, error) {
	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if kind == websocket.TextMessage {
			return data, nil
		}
	}
}

// Send は送信キューにメッセージを積みます。ブロックしない。
// キューが詰まっている遅いクライアントは切断する
func (c *Client) Send(msg []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- msg:
		return true
	case <-c.done:
		return false
	default:
		c.logger.Warn("Send buffer full, dropping client", zap.String("playerID", c.PlayerID()))
		c.Close()
		return false
	}
}

// SendMessage はエンベロープに包んで送信します。
func (c *Client) SendMessage(t protocol.MessageType, payload interface{}) error {
	msg, err := protocol.Encode(t, payload)
	if err != nil {
		return err
	}
	c.Send(msg)
	return nil
}

// SendError は ERROR を送ります。Fatal の場合は送信後に接続を閉じる
func (c *Client) SendError(perr *protocol.Error) {
	if err := c.SendMessage(protocol.TypeError, perr.Payload()); err != nil {
		c.logger.Error("Failed to encode error", zap.Error(err))
	}
	if perr.Fatal {
		c.CloseAfterFlush(websocket.ClosePolicyViolation)
	}
}

// CloseAfterFlush はキュー済みのメッセージを書き終えてから code の Close フレームを送って閉じます。
// 2回目以降の呼び出しのコードは無視される
func (c *Client) CloseAfterFlush(code int) {
	c.mu.Lock()
	if c.closeCode == 0 {
		c.closeCode = code
	}
	c.mu.Unlock()
	if !c.Send(nil) {
		c.Close()
	}
}

func (c *Client) pendingCloseCode() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closeCode == 0 {
		return websocket.CloseNormalClosure
	}
	return c.closeCode
}

// Close は接続を直ちに閉じます。何度呼んでもよい
func (c *Client) Close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// Done は接続が閉じられると閉じるチャネル
func (c *Client) Done() <-chan struct{} { return c.done }
