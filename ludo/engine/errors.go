package engine

import (
	"errors"
	"fmt"
)

// ルール違反のコード。ワイヤ上の ERROR.message にもそのまま載る
const (
	CodeWrongPhase       = "WRONG_PHASE"
	CodeNotYourTurn      = "NOT_YOUR_TURN"
	CodeInvalidToken     = "INVALID_TOKEN"
	CodeTokenNotMovable  = "TOKEN_NOT_MOVABLE"
	CodeRoomFull         = "ROOM_FULL"
	CodeGameStarted      = "GAME_STARTED"
	CodeNotEnoughPlayers = "NOT_ENOUGH_PLAYERS"
	CodeUnknownPlayer    = "UNKNOWN_PLAYER"
	CodeNotHost          = "NOT_HOST"
)

// RuleViolation は現在のフェーズ・ターン・トークンに対して不正な操作を表します。
// 状態は変更されず、違反したクライアントにだけ返されます。
type RuleViolation struct {
	Code    string
	Message string
}

func (e *RuleViolation) Error() string {
	return fmt.Sprintf("rule violation %s: %s", e.Code, e.Message)
}

// Is はコードが一致すれば同じ違反とみなします。
func (e *RuleViolation) Is(target error) bool {
	if t, ok := target.(*RuleViolation); ok {
		return e.Code == t.Code
	}
	return false
}

func violation(code, format string, args ...interface{}) *RuleViolation {
	return &RuleViolation{Code: code, Message: fmt.Sprintf(format, args...)}
}

// errors.Is での比較用
var (
	ErrWrongPhase      = &RuleViolation{Code: CodeWrongPhase}
	ErrNotYourTurn     = &RuleViolation{Code: CodeNotYourTurn}
	ErrInvalidToken    = &RuleViolation{Code: CodeInvalidToken}
	ErrTokenNotMovable = &RuleViolation{Code: CodeTokenNotMovable}
	ErrRoomFull        = &RuleViolation{Code: CodeRoomFull}
	ErrGameStarted     = &RuleViolation{Code: CodeGameStarted}
	ErrNotEnough       = &RuleViolation{Code: CodeNotEnoughPlayers}
	ErrUnknownPlayer   = &RuleViolation{Code: CodeUnknownPlayer}
	ErrNotHost         = &RuleViolation{Code: CodeNotHost}
)

// IsRuleViolation はエラーがルール違反（構造的なエラーではない）かを返します。
func IsRuleViolation(err error) bool {
	var rv *RuleViolation
	return errors.As(err, &rv)
}
