// Package client はゲームサーバーに接続する側のセッションです。
// 認証、ルーム参加、再接続のハンドシェイクを管理し、受け取ったスナップショットを保持します。
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"ludoserver/ludo/engine"
	"ludoserver/ludo/protocol"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
)

// State はセッションの状態
type State string

const (
	StateDisconnected   State = "disconnected"
	StateConnecting     State = "connecting"
	StateAuthenticating State = "authenticating"
	StateJoining        State = "joining"
	StateInGame         State = "in_game"
	StateReconnecting   State = "reconnecting"
	StateError          State = "error"
)

const (
	DefaultMaxAttempts = 5
	dialTimeout        = 10 * time.Second
)

// DefaultBackOff は 1秒, 2秒, 4秒... 最大30秒の指数バックオフ
func DefaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.Multiplier = 2
	b.MaxInterval = 30 * time.Second
	return b
}

type Config struct {
	URL         string
	Dialer      Dialer
	MaxAttempts int                    // 再接続の最大試行回数
	NewBackOff  func() backoff.BackOff // 再接続の待ち時間
	Logger      *zap.Logger

	// コールバックはロックの外で、状態遷移したゴルーチンから呼ばれる
	OnStateChange func(State)
	OnSnapshot    func(engine.Snapshot)
	OnError       func(error)
}

// Session はクライアント1つ分の接続セッション。再接続をまたいでルームコードを保持する
type Session struct {
	cfg Config

	mu         sync.Mutex
	state      State
	credential string
	roomCode   string
	snapshot   engine.Snapshot
	hasState   bool
	conn       Conn
	gen        uint64 // Connect/Disconnect/失敗のたびに進む。古いタイマーや読み取りを無視するため
	attempts   int
	backoff    backoff.BackOff
	timer      *time.Timer
	err        error
	pending    []func()
}

func New(cfg Config) *Session {
	if cfg.Dialer == nil {
		cfg.Dialer = WebSocketDialer{}
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.NewBackOff == nil {
		cfg.NewBackOff = DefaultBackOff
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Session{
		cfg:     cfg,
		state:   StateDisconnected,
		backoff: cfg.NewBackOff(),
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Snapshot は最後に受け取ったスナップショット
func (s *Session) Snapshot() (engine.Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasState {
		return engine.Snapshot{}, false
	}
	return s.snapshot.Clone(), true
}

// Err は error 状態になった原因
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Connect は新しいクレデンシャルでハンドシェイクを開始します。ブロックしない。
// 保留中の再接続や既存の接続は破棄される
func (s *Session) Connect(credential, roomCode string) error {
	roomCode = protocol.NormalizeRoomCode(roomCode)
	if err := protocol.Validate(protocol.Auth{Credential: credential}); err != nil {
		return err
	}
	if err := protocol.Validate(protocol.JoinRoom{RoomCode: roomCode}); err != nil {
		return err
	}

	s.mu.Lock()
	s.resetLocked()
	s.credential = credential
	s.roomCode = roomCode
	s.snapshot = engine.Snapshot{}
	s.hasState = false
	s.attempts = 0
	s.err = nil
	s.backoff.Reset()
	s.setStateLocked(StateConnecting)
	gen := s.gen
	s.unlock()

	go s.dial(gen)
	return nil
}

// Disconnect は接続を閉じ、保留中の再接続タイマーを確実に止めます。
func (s *Session) Disconnect() {
	s.mu.Lock()
	s.resetLocked()
	s.setStateLocked(StateDisconnected)
	s.unlock()
}

func (s *Session) RollDice() error {
	return s.sendIntent(protocol.TypeRollDice, protocol.RollDice{})
}

func (s *Session) MoveToken(tokenID int) error {
	return s.sendIntent(protocol.TypeMoveToken, protocol.MoveToken{TokenID: tokenID})
}

func (s *Session) StartGame() error {
	return s.sendIntent(protocol.TypeStartGame, protocol.StartGame{})
}

// sendIntent は形式だけを検証して送ります。合法かどうかはサーバーが判断し、結果は次のスナップショットで届く
func (s *Session) sendIntent(t protocol.MessageType, intent interface{}) error {
	if err := protocol.Validate(intent); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.unlock()
	if s.state != StateInGame || s.conn == nil {
		return fmt.Errorf("%w: %s in state %s", ErrNotInGame, t, s.state)
	}
	return s.writeLocked(t, intent)
}

// resetLocked は世代を進め、タイマーと接続を破棄します。
func (s *Session) resetLocked() {
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
}

func (s *Session) setStateLocked(state State) {
	if s.state == state {
		return
	}
	s.cfg.Logger.Debug("Session state changed", zap.String("from", string(s.state)), zap.String("to", string(state)))
	s.state = state
	if cb := s.cfg.OnStateChange; cb != nil {
		s.pending = append(s.pending, func() { cb(state) })
	}
}

func (s *Session) reportLocked(err error) {
	if cb := s.cfg.OnError; cb != nil {
		s.pending = append(s.pending, func() { cb(err) })
	}
}

// unlock はロックを外してから溜まったコールバックを呼びます。
func (s *Session) unlock() {
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()
	for _, fn := range pending {
		fn()
	}
}

// failLocked は終端のエラー状態にします。自動の再接続はしない
func (s *Session) failLocked(err error) {
	s.resetLocked()
	s.err = err
	s.cfg.Logger.Warn("Session failed", zap.Error(err))
	s.setStateLocked(StateError)
	s.reportLocked(err)
}

func (s *Session) writeLocked(t protocol.MessageType, payload interface{}) error {
	data, err := protocol.Encode(t, payload)
	if err != nil {
		return err
	}
	if err := s.conn.WriteMessage(data); err != nil {
		// 読み取り側が切断を検知して再接続に入る
		s.conn.Close()
		return fmt.Errorf("write %s: %w", t, err)
	}
	return nil
}

func (s *Session) dial(gen uint64) {
	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()
	conn, err := s.cfg.Dialer.Dial(ctx, s.cfg.URL)

	s.mu.Lock()
	defer s.unlock()
	if gen != s.gen {
		if conn != nil {
			conn.Close()
		}
		return
	}
	if err != nil {
		s.cfg.Logger.Info("Dial failed", zap.String("url", s.cfg.URL), zap.Error(err))
		s.scheduleRetryLocked(err)
		return
	}

	// 接続が開いたら他のどのメッセージよりも先に AUTH を送る
	s.conn = conn
	if err := s.writeLocked(protocol.TypeAuth, protocol.Auth{Credential: s.credential}); err != nil {
		s.cfg.Logger.Info("Failed to send AUTH", zap.Error(err))
	}
	s.setStateLocked(StateAuthenticating)
	go s.readLoop(gen, conn)
}

// scheduleRetryLocked は次の再接続をタイマーで予約します。試行回数を使い切ったら終端エラー
func (s *Session) scheduleRetryLocked(cause error) {
	if s.attempts >= s.cfg.MaxAttempts {
		s.failLocked(fmt.Errorf("%w after %d attempts: %v", ErrReconnectExhausted, s.attempts, cause))
		return
	}
	s.attempts++
	delay := s.backoff.NextBackOff()
	if delay == backoff.Stop {
		s.failLocked(fmt.Errorf("%w: backoff stopped: %v", ErrReconnectExhausted, cause))
		return
	}

	s.cfg.Logger.Info("Scheduling reconnect", zap.Int("attempt", s.attempts), zap.Duration("delay", delay), zap.Error(cause))
	s.setStateLocked(StateReconnecting)
	gen := s.gen
	s.timer = time.AfterFunc(delay, func() { s.retry(gen) })
}

func (s *Session) retry(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || s.state != StateReconnecting {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	s.setStateLocked(StateConnecting)
	s.unlock()

	s.dial(gen)
}

func (s *Session) readLoop(gen uint64, conn Conn) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			s.transportLost(gen, conn, err)
			return
		}
		if !s.handle(gen, conn, data) {
			return
		}
	}
}

func (s *Session) transportLost(gen uint64, conn Conn, err error) {
	s.mu.Lock()
	defer s.unlock()
	if gen != s.gen || conn != s.conn {
		return
	}
	s.conn.Close()
	s.conn = nil
	s.cfg.Logger.Info("Transport lost", zap.String("roomCode", s.roomCode), zap.Error(err))
	// 認証はトランスポートをまたいで引き継がない。毎回最初からやり直す
	s.scheduleRetryLocked(err)
}

// handle は受信メッセージを1つ処理します。false なら読み取りを終える
func (s *Session) handle(gen uint64, conn Conn, data []byte) bool {
	s.mu.Lock()
	defer s.unlock()
	if gen != s.gen || conn != s.conn {
		return false
	}

	msg, err := protocol.Decode(data)
	if err != nil {
		s.failLocked(fmt.Errorf("%w: %v", ErrProtocolViolation, err))
		return false
	}

	switch msg.Type {
	case protocol.TypeAuthResult:
		return s.handleAuthResultLocked(msg)
	case protocol.TypeState:
		return s.handleStateLocked(msg)
	case protocol.TypeError:
		return s.handleErrorLocked(msg)
	default:
		s.failLocked(fmt.Errorf("%w: unexpected message %s", ErrProtocolViolation, msg.Type))
		return false
	}
}

func (s *Session) handleAuthResultLocked(msg protocol.Message) bool {
	var res protocol.AuthResult
	if err := msg.Into(&res); err != nil {
		s.failLocked(fmt.Errorf("%w: %v", ErrProtocolViolation, err))
		return false
	}
	if !res.Success {
		s.failLocked(fmt.Errorf("%w: %s", ErrAuthFailed, res.Error))
		return false
	}
	if s.state != StateAuthenticating {
		s.cfg.Logger.Debug("Ignoring AUTH_RESULT", zap.String("state", string(s.state)))
		return true
	}

	// 認証の肯定応答を受け取ってから、ハンドシェイクごとにちょうど1回 JOIN_ROOM を送る
	s.setStateLocked(StateJoining)
	if err := s.writeLocked(protocol.TypeJoinRoom, protocol.JoinRoom{RoomCode: s.roomCode}); err != nil {
		s.cfg.Logger.Info("Failed to send JOIN_ROOM", zap.Error(err))
	}
	return true
}

func (s *Session) handleStateLocked(msg protocol.Message) bool {
	var snap engine.Snapshot
	if err := json.Unmarshal(msg.Payload, &snap); err != nil {
		s.failLocked(fmt.Errorf("%w: malformed snapshot: %v", ErrProtocolViolation, err))
		return false
	}
	if err := protocol.ValidateSnapshot(snap); err != nil {
		s.failLocked(fmt.Errorf("%w: %v", ErrProtocolViolation, err))
		return false
	}
	if snap.RoomCode != s.roomCode {
		s.failLocked(fmt.Errorf("%w: snapshot for room %s, joined %s", ErrProtocolViolation, snap.RoomCode, s.roomCode))
		return false
	}

	s.snapshot = ApplySnapshot(s.snapshot, snap)
	s.hasState = true
	s.attempts = 0
	s.backoff.Reset()
	s.setStateLocked(StateInGame)
	if cb := s.cfg.OnSnapshot; cb != nil {
		copied := s.snapshot.Clone()
		s.pending = append(s.pending, func() { cb(copied) })
	}
	return true
}

func (s *Session) handleErrorLocked(msg protocol.Message) bool {
	var payload protocol.ErrorPayload
	if err := msg.Into(&payload); err != nil {
		s.failLocked(fmt.Errorf("%w: %v", ErrProtocolViolation, err))
		return false
	}
	perr := &protocol.Error{Code: payload.Code, Message: payload.Message, Fatal: payload.Fatal}

	switch {
	case perr.Code == protocol.CodeAuthFailed:
		s.failLocked(fmt.Errorf("%w: %w", ErrAuthFailed, perr))
		return false
	case perr.Code == protocol.CodeProtocolViolation:
		s.failLocked(fmt.Errorf("%w: %w", ErrProtocolViolation, perr))
		return false
	case perr.Fatal, perr.Code == protocol.CodeRoomNotFound && s.state == StateJoining:
		s.failLocked(perr)
		return false
	}

	// ルール違反などは通知するだけで状態は変えない
	s.cfg.Logger.Info("Server rejected intent", zap.String("code", perr.Code), zap.String("message", perr.Message))
	s.reportLocked(perr)
	return true
}

// IsRuleViolation はサーバーがインテントをルール違反として拒否したかを返します。
func IsRuleViolation(err error) bool {
	var perr *protocol.Error
	return errors.As(err, &perr) && perr.Code == protocol.CodeRuleViolation
}
