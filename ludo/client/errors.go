package client

import "errors"

var (
	// ErrAuthFailed は認証の拒否。自動で再試行しない。新しいクレデンシャルで Connect し直す
	ErrAuthFailed = errors.New("authentication failed")
	// ErrReconnectExhausted は再接続の試行回数を使い切った
	ErrReconnectExhausted = errors.New("reconnect attempts exhausted")
	// ErrProtocolViolation は不正なメッセージや矛盾したスナップショット
	ErrProtocolViolation = errors.New("protocol violation")
	// ErrNotInGame はゲーム参加前のインテント送信
	ErrNotInGame = errors.New("not in game")
)
