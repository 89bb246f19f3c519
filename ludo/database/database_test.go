package database

import (
	"context"
	"sync"
	"testing"
	"time"

	"ludoserver/ludo/engine"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSnapshotKey(t *testing.T) {
	assert.Equal(t, "room:ABCD:snapshot", snapshotKey("ABCD"))
}

func TestArchiveKeepsLatestPendingVersion(t *testing.T) {
	a := NewSnapshotArchive(nil, time.Hour, zap.NewNop())
	a.RoomChanged(engine.Snapshot{RoomCode: "ABCD", Version: 3})
	a.RoomChanged(engine.Snapshot{RoomCode: "ABCD", Version: 5})
	a.RoomChanged(engine.Snapshot{RoomCode: "ABCD", Version: 4})
	a.RoomReaped(engine.Snapshot{RoomCode: "WXYZ", Version: 1})

	batch := a.takePending()
	require.Len(t, batch, 2)
	assert.Equal(t, uint64(5), batch["ABCD"].Version)
	assert.Equal(t, uint64(1), batch["WXYZ"].Version)
	assert.Empty(t, a.takePending())

	// 通知は溜まらず1つにまとまる
	assert.Len(t, a.wake, 1)
}

type call struct {
	method   string
	code     string
	winnerID *uint
}

type fakeWriter struct {
	mu    sync.Mutex
	calls []call
}

func (f *fakeWriter) MarkPlaying(_ context.Context, code string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{method: "playing", code: code})
	return nil
}

func (f *fakeWriter) MarkFinished(_ context.Context, code string, winnerID *uint, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{method: "finished", code: code, winnerID: winnerID})
	return nil
}

func (f *fakeWriter) snapshot() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.calls...)
}

func TestRoomStateRecorderWritesEachTransitionOnce(t *testing.T) {
	w := &fakeWriter{}
	r := NewRoomStateRecorder(w, zap.NewNop())

	for _, phase := range []engine.Phase{engine.PhaseWaiting, engine.PhaseWaiting, engine.PhaseRoll, engine.PhaseMove, engine.PhaseRoll} {
		r.RoomChanged(engine.Snapshot{RoomCode: "ABCD", Phase: phase})
	}
	r.RoomChanged(engine.Snapshot{RoomCode: "ABCD", Phase: engine.PhaseEnd, Winner: "12"})
	r.RoomChanged(engine.Snapshot{RoomCode: "ABCD", Phase: engine.PhaseEnd, Winner: "12"})
	r.RoomChanged(engine.Snapshot{RoomCode: "WXYZ", Phase: engine.PhaseEnd, Winner: "guest"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()
	require.Eventually(t, func() bool { return len(w.snapshot()) == 3 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	calls := w.snapshot()
	assert.Equal(t, call{method: "playing", code: "ABCD"}, calls[0])
	assert.Equal(t, "finished", calls[1].method)
	require.NotNil(t, calls[1].winnerID)
	assert.Equal(t, uint(12), *calls[1].winnerID)
	assert.Equal(t, call{method: "finished", code: "WXYZ"}, calls[2])
}

func TestRoomStateRecorderForgetsReapedRooms(t *testing.T) {
	r := NewRoomStateRecorder(&fakeWriter{}, zap.NewNop())
	r.RoomChanged(engine.Snapshot{RoomCode: "ABCD", Phase: engine.PhaseRoll})
	r.RoomReaped(engine.Snapshot{RoomCode: "ABCD"})
	r.RoomChanged(engine.Snapshot{RoomCode: "ABCD", Phase: engine.PhaseRoll})
	assert.Len(t, r.events, 2)
}
