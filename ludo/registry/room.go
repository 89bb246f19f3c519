package registry

import (
	"sync"
	"time"

	"ludoserver/ludo/engine"
)

// Room は1ルームの単一ライター。ゲームへの全ての呼び出しはロックの下で直列に実行される
type Room struct {
	mu           sync.Mutex
	code         string
	game         *engine.Game
	lastActivity time.Time
	endedAt      time.Time
	closed       bool // Reap で登録から外された
	registry     *Registry
}

func (rm *Room) Code() string { return rm.code }

// Snapshot は現在の状態のコピー
func (rm *Room) Snapshot() engine.Snapshot {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return rm.game.Snapshot()
}

// Roll は ROLL_DICE インテントを処理します。
func (rm *Room) Roll(playerID string) (engine.RollResult, error) {
	var res engine.RollResult
	err := rm.apply(func(g *engine.Game) error {
		var err error
		res, err = g.RollDice(playerID)
		return err
	})
	return res, err
}

// Move は MOVE_TOKEN インテントを処理します。
func (rm *Room) Move(playerID string, tokenID int) (engine.MoveResult, error) {
	var res engine.MoveResult
	err := rm.apply(func(g *engine.Game) error {
		var err error
		res, err = g.MoveToken(playerID, tokenID)
		return err
	})
	return res, err
}

// Start は START_GAME インテントを処理します。
func (rm *Room) Start(playerID string) error {
	return rm.apply(func(g *engine.Game) error {
		return g.Start(playerID)
	})
}

// apply はロックの下で fn を実行し、状態が変わった場合のみオブザーバーに通知します。
// 通知もロック内で行うため、同じルームのスナップショットは必ず発生順に届く
func (rm *Room) apply(fn func(g *engine.Game) error) error {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.closed {
		return errRoomClosed
	}
	before := rm.game.Version()
	if err := fn(rm.game); err != nil {
		return err
	}
	if rm.game.Version() == before {
		return nil
	}

	now := rm.registry.now()
	rm.lastActivity = now
	if rm.game.Phase() == engine.PhaseEnd && rm.endedAt.IsZero() {
		rm.endedAt = now
	}
	rm.registry.notify(rm.game.Snapshot())
	return nil
}

// closeIfExpired は破棄の対象なら閉じて true を返します。閉じたルームへの操作は errRoomClosed になる
func (rm *Room) closeIfExpired(now time.Time, cfg Config) bool {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.expiredLocked(now, cfg) {
		rm.closed = true
	}
	return rm.closed
}

func (rm *Room) expiredLocked(now time.Time, cfg Config) bool {
	if !rm.endedAt.IsZero() && now.Sub(rm.endedAt) > cfg.EndedRetention {
		return true
	}
	for _, p := range rm.game.Players() {
		if p.Connected {
			return false
		}
	}
	return now.Sub(rm.lastActivity) > cfg.IdleTimeout
}
