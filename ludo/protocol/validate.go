package protocol

import (
	"fmt"

	"ludoserver/ludo/board"
	"ludoserver/ludo/engine"

	"github.com/go-playground/validator/v10"
)

// 形式チェックだけを行う。合法かどうかの判断はルールエンジンのみ
var validate = validator.New()

// Validate はインテントの形式を検証します。
func Validate(intent interface{}) error {
	if err := validate.Struct(intent); err != nil {
		return Wrap(CodeProtocolViolation, fmt.Sprintf("invalid %T", intent), err)
	}
	return nil
}

// ValidateSnapshot はスナップショットが自己完結した正しい形式かを確認します。
// 未知の色や範囲外の座標はプロトコル違反として扱い、黙って無視しない
func ValidateSnapshot(s engine.Snapshot) error {
	if s.RoomCode == "" {
		return NewError(CodeProtocolViolation, "snapshot without room code")
	}
	switch s.Phase {
	case engine.PhaseWaiting, engine.PhaseRoll, engine.PhaseMove, engine.PhaseEnd:
	default:
		return NewError(CodeProtocolViolation, fmt.Sprintf("unknown phase %q", s.Phase))
	}
	if len(s.Players) > len(board.Colors) {
		return NewError(CodeProtocolViolation, fmt.Sprintf("snapshot has %d players", len(s.Players)))
	}

	seated := make(map[string]bool, len(s.Players))
	colors := make(map[board.Color]bool, len(s.Players))
	for _, p := range s.Players {
		if !p.Color.Valid() {
			return NewError(CodeProtocolViolation, fmt.Sprintf("unknown color %q", p.Color))
		}
		if colors[p.Color] || seated[p.ID] {
			return NewError(CodeProtocolViolation, fmt.Sprintf("duplicate seat %s/%s", p.ID, p.Color))
		}
		colors[p.Color] = true
		seated[p.ID] = true
	}

	for id, coords := range s.Tokens {
		if !seated[id] {
			return NewError(CodeProtocolViolation, fmt.Sprintf("tokens for unknown player %s", id))
		}
		if len(coords) != board.TokensPerPlayer {
			return NewError(CodeProtocolViolation, fmt.Sprintf("player %s has %d tokens", id, len(coords)))
		}
		for _, c := range coords {
			if c < board.BaseCoordinate || c > board.HomeCoordinate {
				return NewError(CodeProtocolViolation, fmt.Sprintf("coordinate %d out of range", c))
			}
		}
	}

	if s.CurrentTurn != "" && !seated[s.CurrentTurn] {
		return NewError(CodeProtocolViolation, fmt.Sprintf("turn for unknown player %s", s.CurrentTurn))
	}
	if s.Winner != "" && !seated[s.Winner] {
		return NewError(CodeProtocolViolation, fmt.Sprintf("unknown winner %s", s.Winner))
	}
	if s.Dice != nil && (*s.Dice < 1 || *s.Dice > 6) {
		return NewError(CodeProtocolViolation, fmt.Sprintf("dice %d out of range", *s.Dice))
	}
	for _, id := range s.MovableTokens {
		if id < 0 || id >= board.TokensPerPlayer {
			return NewError(CodeProtocolViolation, fmt.Sprintf("movable token %d out of range", id))
		}
	}
	return nil
}
