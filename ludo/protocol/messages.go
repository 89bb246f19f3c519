// Package protocol はクライアントとサーバー間のワイヤメッセージを定義します。
// 全てのメッセージは {"type": ..., "payload": {...}} の JSON テキストフレームです。
package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

type MessageType string

const (
	// クライアント → サーバー
	TypeAuth      MessageType = "AUTH"
	TypeJoinRoom  MessageType = "JOIN_ROOM"
	TypeRollDice  MessageType = "ROLL_DICE"
	TypeMoveToken MessageType = "MOVE_TOKEN"
	TypeStartGame MessageType = "START_GAME"

	// サーバー → クライアント
	TypeAuthResult MessageType = "AUTH_RESULT"
	TypeState      MessageType = "STATE"
	TypeError      MessageType = "ERROR"
)

// Message はタイプとペイロードを持つエンベロープ
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type Auth struct {
	Credential string `json:"credential" validate:"required"`
}

type JoinRoom struct {
	RoomCode string `json:"roomCode" validate:"required,alphanum,uppercase,min=4,max=6"`
}

type RollDice struct{}

type MoveToken struct {
	TokenID int `json:"tokenId" validate:"gte=0,lte=3"`
}

type StartGame struct{}

type AuthResult struct {
	Success bool   `json:"success"`
	UserID  string `json:"userId,omitempty"`
	Error   string `json:"error,omitempty"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Fatal   bool   `json:"fatal,omitempty"`
}

// Encode はペイロードをエンベロープに包んで JSON にします。
func Encode(t MessageType, payload interface{}) ([]byte, error) {
	msg := Message{Type: t}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", t, err)
		}
		msg.Payload = raw
	}
	return json.Marshal(msg)
}

// Decode はエンベロープを読み取ります。不正な JSON やタイプ無しはプロトコル違反
func Decode(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, Wrap(CodeProtocolViolation, "malformed message", err)
	}
	if msg.Type == "" {
		return Message{}, NewError(CodeProtocolViolation, "message type is required")
	}
	return msg, nil
}

// Into はペイロードを v にデコードします。ペイロードが空なら v はゼロ値のまま
func (m Message) Into(v interface{}) error {
	if len(m.Payload) == 0 || string(m.Payload) == "null" {
		return nil
	}
	if err := json.Unmarshal(m.Payload, v); err != nil {
		return Wrap(CodeProtocolViolation, fmt.Sprintf("malformed %s payload", m.Type), err)
	}
	return nil
}

// NormalizeRoomCode は前後の空白を除き大文字に揃えます。
func NormalizeRoomCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
