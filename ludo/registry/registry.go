// Package registry はルームコードからルールエンジンへのアリーナです。
// 1ルームにつき権威的なゲームは1つで、ルーム同士は状態を共有しません。
package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"ludoserver/ludo/board"
	"ludoserver/ludo/engine"

	"go.uber.org/zap"
)

// ErrRoomNotFound はルームストアにも存在しないコード
var ErrRoomNotFound = errors.New("room not found")

// 破棄済みのルームへの操作。呼び出し側からは ErrRoomNotFound に見える
var errRoomClosed = fmt.Errorf("%w: room closed", ErrRoomNotFound)

// RoomStore はロビーで作成されたルームコードを照会します（PostgreSQL）。
type RoomStore interface {
	RoomExists(ctx context.Context, code string) (bool, error)
}

// Observer は状態が変わるたびに新しいスナップショットを受け取ります。
// ルームのロック内で呼ばれるため、ブロックしてはいけない
type Observer interface {
	RoomChanged(snap engine.Snapshot)
}

// ReapObserver を実装した Observer はルーム破棄時に最終スナップショットを受け取ります。
type ReapObserver interface {
	RoomReaped(snap engine.Snapshot)
}

// ObserverFunc は関数を Observer として使うためのアダプタ
type ObserverFunc func(snap engine.Snapshot)

func (f ObserverFunc) RoomChanged(snap engine.Snapshot) { f(snap) }

type Config struct {
	IdleTimeout      time.Duration // 誰も接続していないルームを破棄するまでの時間
	EndedRetention   time.Duration // 終了したルームをメモリに残す時間
	SkipDisconnected bool          // 切断したプレイヤーをローテーションから外すか
	NewRoller        func() engine.Roller
}

func (c *Config) setDefaults() {
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 30 * time.Minute
	}
	if c.EndedRetention <= 0 {
		c.EndedRetention = 10 * time.Minute
	}
	if c.NewRoller == nil {
		c.NewRoller = engine.NewRoller
	}
}

type Registry struct {
	mu        sync.RWMutex
	rooms     map[string]*Room
	store     RoomStore
	cfg       Config
	observers []Observer
	logger    *zap.Logger
	now       func() time.Time
}

func New(store RoomStore, cfg Config, logger *zap.Logger, observers ...Observer) *Registry {
	cfg.setDefaults()
	return &Registry{
		rooms:     make(map[string]*Room),
		store:     store,
		cfg:       cfg,
		observers: observers,
		logger:    logger,
		now:       time.Now,
	}
}

// Get は生存中のルームを返します。
func (r *Registry) Get(code string) (*Room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[code]
	return room, ok
}

// Len は生存中のルーム数
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// Join はプレイヤーをルームに着席させます。最初の参加でゲームインスタンスを作成
func (r *Registry) Join(ctx context.Context, code, playerID string) (*Room, board.Color, error) {
	// 取得から着席までの間に Reap で破棄された場合は作り直して再試行する
	const maxAttempts = 3
	var err error
	for i := 0; i < maxAttempts; i++ {
		var room *Room
		room, err = r.getOrCreate(ctx, code)
		if err != nil {
			return nil, "", err
		}

		var color board.Color
		color, err = r.seat(room, playerID)
		if errors.Is(err, errRoomClosed) {
			continue
		}
		if err != nil {
			return nil, "", err
		}

		r.logger.Info("Player joined room", zap.String("roomCode", code), zap.String("playerID", playerID), zap.String("color", string(color)))
		return room, color, nil
	}
	return nil, "", err
}

func (r *Registry) seat(room *Room, playerID string) (board.Color, error) {
	var color board.Color
	err := room.apply(func(g *engine.Game) error {
		c, err := g.AddPlayer(playerID)
		if err != nil {
			return err
		}
		color = c
		if r.cfg.SkipDisconnected {
			return g.SetInRotation(playerID, true)
		}
		return nil
	})
	return color, err
}

func (r *Registry) getOrCreate(ctx context.Context, code string) (*Room, error) {
	if room, ok := r.Get(code); ok {
		return room, nil
	}

	exists, err := r.store.RoomExists(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("lookup room %s: %w", code, err)
	}
	if !exists {
		return nil, ErrRoomNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// ロックを取るまでに他の接続が作成している場合がある
	if room, ok := r.rooms[code]; ok {
		return room, nil
	}
	room := &Room{
		code:         code,
		game:         engine.New(code, engine.WithRoller(r.cfg.NewRoller())),
		lastActivity: r.now(),
		registry:     r,
	}
	r.rooms[code] = room
	r.logger.Info("New game instance created", zap.String("roomCode", code))
	return room, nil
}

// Leave はトランスポート切断時にプレイヤーを切断状態にします。座席とトークンは残る
func (r *Registry) Leave(code, playerID string) {
	room, ok := r.Get(code)
	if !ok {
		return
	}
	err := room.apply(func(g *engine.Game) error {
		if err := g.SetConnected(playerID, false); err != nil {
			return err
		}
		if r.cfg.SkipDisconnected {
			return g.SetInRotation(playerID, false)
		}
		return nil
	})
	if err != nil {
		r.logger.Warn("Failed to mark player disconnected", zap.String("roomCode", code), zap.String("playerID", playerID), zap.Error(err))
	}
}

// Reap は放棄されたルームと終了後の保持期間を過ぎたルームを破棄し、そのコードを返します。
func (r *Registry) Reap(now time.Time) []string {
	r.mu.Lock()
	var reaped []*Room
	for code, room := range r.rooms {
		if room.closeIfExpired(now, r.cfg) {
			delete(r.rooms, code)
			reaped = append(reaped, room)
		}
	}
	r.mu.Unlock()

	codes := make([]string, 0, len(reaped))
	for _, room := range reaped {
		snap := room.Snapshot()
		for _, o := range r.observers {
			if ro, ok := o.(ReapObserver); ok {
				ro.RoomReaped(snap)
			}
		}
		codes = append(codes, room.code)
		r.logger.Info("Room reaped", zap.String("roomCode", room.code), zap.String("phase", string(snap.Phase)))
	}
	return codes
}

func (r *Registry) notify(snap engine.Snapshot) {
	for _, o := range r.observers {
		o.RoomChanged(snap)
	}
}
