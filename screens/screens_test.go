package screens

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"ludoserver/ludo/database"
	"ludoserver/ludo/engine"
	"ludoserver/ludo/registry"
	"ludoserver/middlewares"
	"ludoserver/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeRooms struct {
	creator uint
	err     error
}

func (f *fakeRooms) CreateRoom(_ context.Context, creatorID uint) (models.GameRoom, error) {
	f.creator = creatorID
	return models.GameRoom{Code: "QWERTY", CreatorID: creatorID}, f.err
}

type fakeArchive map[string]engine.Snapshot

func (a fakeArchive) Latest(_ context.Context, code string) (engine.Snapshot, error) {
	snap, ok := a[code]
	if !ok {
		return engine.Snapshot{}, database.ErrSnapshotNotFound
	}
	return snap, nil
}

type roomStore map[string]bool

func (s roomStore) RoomExists(_ context.Context, code string) (bool, error) {
	return s[code], nil
}

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRoomCreateHandler(t *testing.T) {
	rooms := &fakeRooms{}
	router := gin.New()
	router.POST("/rooms", func(c *gin.Context) {
		c.Set(middlewares.UserIDKey, uint(7))
		RoomCreateHandler(c, rooms, zap.NewNop())
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/rooms", nil))

	require.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"roomCode":"QWERTY"}`, w.Body.String())
	assert.Equal(t, uint(7), rooms.creator)
}

func TestRoomCreateHandlerErrors(t *testing.T) {
	rooms := &fakeRooms{err: errors.New("db down")}
	router := gin.New()
	router.POST("/rooms", func(c *gin.Context) { RoomCreateHandler(c, rooms, zap.NewNop()) })
	router.POST("/rooms/auth", func(c *gin.Context) {
		c.Set(middlewares.UserIDKey, uint(7))
		RoomCreateHandler(c, rooms, zap.NewNop())
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/rooms", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/rooms/auth", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestRoomInfoHandler(t *testing.T) {
	logger := zap.NewNop()
	reg := registry.New(roomStore{"LIVE": true}, registry.Config{}, logger)
	_, _, err := reg.Join(context.Background(), "LIVE", "1")
	require.NoError(t, err)

	archive := fakeArchive{"DONE": {RoomCode: "DONE", Phase: engine.PhaseEnd, Winner: "2"}}
	router := gin.New()
	router.GET("/rooms/:code", func(c *gin.Context) { RoomInfoHandler(c, reg, archive, logger) })

	get := func(path string) (int, engine.Snapshot) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		var snap engine.Snapshot
		if w.Code == http.StatusOK {
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
		}
		return w.Code, snap
	}

	code, snap := get("/rooms/live")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "LIVE", snap.RoomCode)
	assert.Len(t, snap.Players, 1)

	code, snap = get("/rooms/DONE")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, engine.PhaseEnd, snap.Phase)
	assert.Equal(t, "2", snap.Winner)

	code, _ = get("/rooms/NONE")
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = get("/rooms/a-b")
	assert.Equal(t, http.StatusBadRequest, code)
}
