package protocol

import (
	"errors"
)

// ワイヤ上のエラーコード
const (
	CodeRuleViolation     = "RULE_VIOLATION"
	CodeProtocolViolation = "PROTOCOL_VIOLATION"
	CodeAuthFailed        = "AUTH_FAILED"
	CodeRoomNotFound      = "ROOM_NOT_FOUND"
	CodeInternal          = "INTERNAL"
)

// Error はコード付きのプロトコルエラー。Fatal の場合サーバーは接続を閉じる
type Error struct {
	Code    string
	Message string
	Fatal   bool
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Code + ": " + e.Message + ": " + e.Cause.Error()
	}
	return e.Code + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is はコードで比較します。
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// Payload はワイヤに載せる形に変換します。
func (e *Error) Payload() ErrorPayload {
	return ErrorPayload{Code: e.Code, Message: e.Message, Fatal: e.Fatal}
}

func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message, Fatal: code == CodeProtocolViolation || code == CodeAuthFailed}
}

func Wrap(code, message string, cause error) *Error {
	e := NewError(code, message)
	e.Cause = cause
	return e
}

// errors.Is での比較用
var (
	ErrProtocolViolation = &Error{Code: CodeProtocolViolation}
	ErrAuthFailed        = &Error{Code: CodeAuthFailed}
	ErrRoomNotFound      = &Error{Code: CodeRoomNotFound}
)

// AsError は err を *Error に変換します。該当しなければ INTERNAL
func AsError(err error) *Error {
	var pe *Error
	if errors.As(err, &pe) {
		return pe
	}
	return Wrap(CodeInternal, "internal error", err)
}
