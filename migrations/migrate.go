// Package migrations はテーブルの作成と変更を行います。
package migrations

import (
	"fmt"

	"ludoserver/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AutoMigrate は users と game_rooms テーブルを作成・更新します。
func AutoMigrate(db *gorm.DB, logger *zap.Logger) error {
	if err := db.AutoMigrate(&models.User{}, &models.GameRoom{}); err != nil {
		logger.Error("マイグレーションに失敗しました", zap.Error(err))
		return fmt.Errorf("auto migrate: %w", err)
	}
	logger.Info("マイグレーションが完了しました")
	return nil
}
