// Package broadcast はルームのスナップショットを参加者全員に配信します。
package broadcast

import (
	"sync"

	"ludoserver/ludo/connection"
	"ludoserver/ludo/engine"
	"ludoserver/ludo/protocol"

	"go.uber.org/zap"
)

// Subscriber は配信先。connection.Client が実装する
type Subscriber interface {
	Send(msg []byte) bool
	PlayerID() string
}

var _ Subscriber = (*connection.Client)(nil)

// Hub はルームコードごとの購読者一覧。registry の Observer として登録する
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]map[Subscriber]struct{}
	logger *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		rooms:  make(map[string]map[Subscriber]struct{}),
		logger: logger,
	}
}

// Subscribe は以降のスナップショットを s に届けます。
func (h *Hub) Subscribe(code string, s Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.rooms[code]
	if !ok {
		subs = make(map[Subscriber]struct{})
		h.rooms[code] = subs
	}
	subs[s] = struct{}{}
}

// Unsubscribe は s を外し、同じプレイヤーの別の接続がまだ残っているかを返します。
func (h *Hub) Unsubscribe(code string, s Subscriber) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.rooms[code]
	if !ok {
		return false
	}
	delete(subs, s)
	if len(subs) == 0 {
		delete(h.rooms, code)
		return false
	}
	for other := range subs {
		if other.PlayerID() == s.PlayerID() {
			return true
		}
	}
	return false
}

// Subscribers はルームの購読者数
func (h *Hub) Subscribers(code string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[code])
}

// RoomChanged は registry.Observer の実装
func (h *Hub) RoomChanged(snap engine.Snapshot) {
	h.BroadcastGameState(snap)
}

// RoomReaped は破棄されたルームの購読を全て外します。
func (h *Hub) RoomReaped(snap engine.Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.rooms, snap.RoomCode)
}

// ゲームの状態をルームの全員にブロードキャストする。送信キューに積むだけでブロックしない
func (h *Hub) BroadcastGameState(snap engine.Snapshot) {
	messageJSON, err := protocol.Encode(protocol.TypeState, snap)
	if err != nil {
		h.logger.Error("Failed to marshal game state", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.rooms[snap.RoomCode] {
		if !s.Send(messageJSON) {
			h.logger.Warn("Failed to broadcast game state", zap.String("roomCode", snap.RoomCode), zap.String("playerID", s.PlayerID()))
		}
	}
}
