// Package database はルームの状態を Redis と PostgreSQL に書き出します。
// どちらも registry の Observer としてルームのロック内で呼ばれるため、
// 実際の書き込みは Run のゴルーチンで非同期に行います。
package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"ludoserver/ludo/engine"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// ErrSnapshotNotFound はアーカイブにスナップショットが無い
var ErrSnapshotNotFound = errors.New("snapshot not found")

func snapshotKey(code string) string {
	return "room:" + code + ":snapshot"
}

// SnapshotArchive はルームごとに最新のスナップショットを Redis に保存します。
// 終了後や破棄後も TTL の間は GET /rooms/:code で読める
type SnapshotArchive struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger

	mu      sync.Mutex
	pending map[string]engine.Snapshot // 未書き込みの最新スナップショット
	wake    chan struct{}
}

func NewSnapshotArchive(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *SnapshotArchive {
	return &SnapshotArchive{
		rdb:     rdb,
		ttl:     ttl,
		logger:  logger,
		pending: make(map[string]engine.Snapshot),
		wake:    make(chan struct{}, 1),
	}
}

// RoomChanged は書き込み待ちに積むだけ。同じルームの古い版は上書きされる
func (a *SnapshotArchive) RoomChanged(snap engine.Snapshot) {
	a.mu.Lock()
	if prev, ok := a.pending[snap.RoomCode]; !ok || prev.Version <= snap.Version {
		a.pending[snap.RoomCode] = snap
	}
	a.mu.Unlock()

	select {
	case a.wake <- struct{}{}:
	default:
	}
}

func (a *SnapshotArchive) RoomReaped(snap engine.Snapshot) {
	a.RoomChanged(snap)
}

func (a *SnapshotArchive) takePending() map[string]engine.Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	batch := a.pending
	a.pending = make(map[string]engine.Snapshot)
	return batch
}

// Run は ctx が終わるまで書き込み待ちを Redis に反映します。終了時に残りも書き出す
func (a *SnapshotArchive) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			a.flush(flushCtx)
			cancel()
			return
		case <-a.wake:
			a.flush(ctx)
		}
	}
}

func (a *SnapshotArchive) flush(ctx context.Context) {
	for code, snap := range a.takePending() {
		if err := a.Save(ctx, snap); err != nil {
			a.logger.Error("Failed to archive snapshot", zap.String("roomCode", code), zap.Uint64("version", snap.Version), zap.Error(err))
		}
	}
}

// Save はスナップショットを書き込みます。
func (a *SnapshotArchive) Save(ctx context.Context, snap engine.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	return a.rdb.Set(ctx, snapshotKey(snap.RoomCode), data, a.ttl).Err()
}

// Latest は保存されている最新のスナップショットを返します。
func (a *SnapshotArchive) Latest(ctx context.Context, code string) (engine.Snapshot, error) {
	data, err := a.rdb.Get(ctx, snapshotKey(code)).Bytes()
	if errors.Is(err, redis.Nil) {
		return engine.Snapshot{}, ErrSnapshotNotFound
	}
	if err != nil {
		return engine.Snapshot{}, fmt.Errorf("get snapshot %s: %w", code, err)
	}

	var snap engine.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return engine.Snapshot{}, fmt.Errorf("decode snapshot %s: %w", code, err)
	}
	return snap, nil
}
