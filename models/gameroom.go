package models

import (
	"gorm.io/gorm"
)

// GameState の値
const (
	GameStateCreated  = "created"
	GameStatePlaying  = "playing"
	GameStateFinished = "finished"
	GameStateExpired  = "expired"
)

// GameRoom モデルの定義
type GameRoom struct {
	gorm.Model
	Code       string `gorm:"uniqueIndex;size:6;not null"` // 招待用ルームコード
	CreatorID  uint   `gorm:"not null"`
	GameState  string `gorm:"not null;default:'created'"`
	WinnerID   *uint
	StartTime  int64
	FinishTime int64
}
