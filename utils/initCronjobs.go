package utils

import (
	"context"
	"time"

	"ludoserver/ludo/registry"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// 一定期間更新のないルーム行を expired にする
const staleRoomAge = 24 * time.Hour

// RoomExpirer は放置されたルーム行を expired にする
type RoomExpirer interface {
	ExpireStaleRooms(ctx context.Context, before time.Time) (int64, error)
}

// CronCleaner は定期ジョブを登録して開始します。呼び出し側は終了時に Stop すること
func CronCleaner(reg *registry.Registry, rooms RoomExpirer, logger *zap.Logger) (*cron.Cron, error) {
	c := cron.New()

	// 放置・終了したルームをメモリから破棄するジョブ（毎分）
	if _, err := c.AddFunc("@every 1m", func() {
		if reaped := reg.Reap(time.Now()); len(reaped) > 0 {
			logger.Info("ルームを破棄しました", zap.Strings("roomCodes", reaped))
		}
	}); err != nil {
		return nil, err
	}

	// 24時間更新がないルームを expired に更新するジョブ（毎時）
	if _, err := c.AddFunc("@hourly", func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		n, err := rooms.ExpireStaleRooms(ctx, time.Now().Add(-staleRoomAge))
		if err != nil {
			logger.Error("expired 状態への更新に失敗しました", zap.Error(err))
			return
		}
		logger.Info("expired 状態への更新完了", zap.Int64("rooms_expired", n))
	}); err != nil {
		return nil, err
	}

	c.Start()
	return c, nil
}
