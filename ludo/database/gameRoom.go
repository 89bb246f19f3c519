package database

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"ludoserver/ludo/engine"
	"ludoserver/ludo/registry"
	"ludoserver/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrNoRoomCode はコードの生成を何度試しても重複した
var ErrNoRoomCode = errors.New("could not allocate a unique room code")

// GameRoomStore は game_rooms と users テーブルへのアクセス
type GameRoomStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewGameRoomStore(db *gorm.DB, logger *zap.Logger) *GameRoomStore {
	return &GameRoomStore{db: db, logger: logger}
}

// RoomExists は参加可能なルームか（created または playing）を返します。registry.RoomStore の実装
func (s *GameRoomStore) RoomExists(ctx context.Context, code string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.GameRoom{}).
		Where("code = ? AND game_state IN ?", code, []string{models.GameStateCreated, models.GameStatePlaying}).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// UserExists は connection.UserStore の実装
func (s *GameRoomStore) UserExists(ctx context.Context, id uint) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// CreateRoom は新しいルームコードでルームを作成します。
func (s *GameRoomStore) CreateRoom(ctx context.Context, creatorID uint) (models.GameRoom, error) {
	const maxAttempts = 5
	for i := 0; i < maxAttempts; i++ {
		code, err := registry.GenerateRoomCode()
		if err != nil {
			return models.GameRoom{}, err
		}

		var count int64
		if err := s.db.WithContext(ctx).Model(&models.GameRoom{}).Where("code = ?", code).Count(&count).Error; err != nil {
			return models.GameRoom{}, err
		}
		if count > 0 {
			s.logger.Info("Room code collision, retrying", zap.String("roomCode", code))
			continue
		}

		room := models.GameRoom{Code: code, CreatorID: creatorID, GameState: models.GameStateCreated}
		if err := s.db.WithContext(ctx).Create(&room).Error; err != nil {
			return models.GameRoom{}, fmt.Errorf("create room: %w", err)
		}
		return room, nil
	}
	return models.GameRoom{}, ErrNoRoomCode
}

func (s *GameRoomStore) MarkPlaying(ctx context.Context, code string, at time.Time) error {
	return s.db.WithContext(ctx).Model(&models.GameRoom{}).
		Where("code = ? AND game_state = ?", code, models.GameStateCreated).
		Updates(map[string]interface{}{"game_state": models.GameStatePlaying, "start_time": at.Unix()}).Error
}

func (s *GameRoomStore) MarkFinished(ctx context.Context, code string, winnerID *uint, at time.Time) error {
	return s.db.WithContext(ctx).Model(&models.GameRoom{}).
		Where("code = ?", code).
		Updates(map[string]interface{}{"game_state": models.GameStateFinished, "winner_id": winnerID, "finish_time": at.Unix()}).Error
}

// ExpireStaleRooms は一定期間更新の無い created/playing のルームを expired にします。
func (s *GameRoomStore) ExpireStaleRooms(ctx context.Context, before time.Time) (int64, error) {
	result := s.db.WithContext(ctx).Model(&models.GameRoom{}).
		Where("game_state IN ? AND updated_at <= ?", []string{models.GameStateCreated, models.GameStatePlaying}, before).
		Update("game_state", models.GameStateExpired)
	return result.RowsAffected, result.Error
}

// RoomStateWriter はルームの状態遷移を書き込む先
type RoomStateWriter interface {
	MarkPlaying(ctx context.Context, code string, at time.Time) error
	MarkFinished(ctx context.Context, code string, winnerID *uint, at time.Time) error
}

type stateEvent struct {
	code   string
	phase  engine.Phase
	winner string
	at     time.Time
}

// RoomStateRecorder はゲームの開始と終了を game_rooms に書き戻す Observer
type RoomStateRecorder struct {
	writer RoomStateWriter
	logger *zap.Logger
	now    func() time.Time

	mu       sync.Mutex
	recorded map[string]engine.Phase // ルームごとに書き込み済みの遷移
	events   chan stateEvent
}

func NewRoomStateRecorder(writer RoomStateWriter, logger *zap.Logger) *RoomStateRecorder {
	return &RoomStateRecorder{
		writer:   writer,
		logger:   logger,
		now:      time.Now,
		recorded: make(map[string]engine.Phase),
		events:   make(chan stateEvent, 256),
	}
}

// RoomChanged は開始（ROLL）と終了（END）への遷移を1回ずつだけキューに積みます。
func (r *RoomStateRecorder) RoomChanged(snap engine.Snapshot) {
	var phase engine.Phase
	switch snap.Phase {
	case engine.PhaseRoll, engine.PhaseMove:
		phase = engine.PhaseRoll
	case engine.PhaseEnd:
		phase = engine.PhaseEnd
	default:
		return
	}

	r.mu.Lock()
	prev := r.recorded[snap.RoomCode]
	if prev == phase || prev == engine.PhaseEnd {
		r.mu.Unlock()
		return
	}
	r.recorded[snap.RoomCode] = phase
	r.mu.Unlock()

	ev := stateEvent{code: snap.RoomCode, phase: phase, winner: snap.Winner, at: r.now()}
	select {
	case r.events <- ev:
	default:
		r.logger.Error("Room state queue full, dropping transition", zap.String("roomCode", ev.code), zap.String("phase", string(ev.phase)))
	}
}

func (r *RoomStateRecorder) RoomReaped(snap engine.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.recorded, snap.RoomCode)
}

// Run は ctx が終わるまで遷移を書き込みます。
func (r *RoomStateRecorder) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-r.events:
			if err := r.write(ctx, ev); err != nil {
				r.logger.Error("Failed to record room state", zap.String("roomCode", ev.code), zap.String("phase", string(ev.phase)), zap.Error(err))
			}
		}
	}
}

func (r *RoomStateRecorder) write(ctx context.Context, ev stateEvent) error {
	if ev.phase != engine.PhaseEnd {
		return r.writer.MarkPlaying(ctx, ev.code, ev.at)
	}

	var winnerID *uint
	if ev.winner != "" {
		id, err := strconv.ParseUint(ev.winner, 10, 64)
		if err != nil {
			r.logger.Warn("Winner is not a user id", zap.String("winner", ev.winner))
		} else {
			uid := uint(id)
			winnerID = &uid
		}
	}
	return r.writer.MarkFinished(ctx, ev.code, winnerID, ev.at)
}
