package models

import (
	"gorm.io/gorm"
)

// User は匿名ユーザー。JWT の UserID はこのテーブルの ID
type User struct {
	gorm.Model
	Nickname string `gorm:"size:32"`
}
