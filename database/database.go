package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"ludoserver/models"

	"github.com/caarlos0/env/v11"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// DefaultConfig は config.json も環境変数も無い場合の値
func DefaultConfig() models.Config {
	return models.Config{
		DBHost:                "localhost",
		DBUser:                "postgres",
		DBName:                "ludo",
		DBSSLMode:             "disable",
		RedisAddr:             "localhost:6379",
		ListenAddr:            ":8080",
		AllowedOrigins:        []string{"http://localhost:8080"},
		IdleTimeoutMinutes:    30,
		EndedRetentionMinutes: 10,
		SnapshotTTLHours:      24,
		LogLevel:              "info",
	}
}

// LoadConfig は config.json を読み込み、環境変数で上書きします。
// ファイルが存在しない場合はデフォルト値と環境変数だけを使う
func LoadConfig(filename string) (models.Config, error) {
	config := DefaultConfig()

	configFile, err := os.Open(filename)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return config, err
	default:
		defer configFile.Close()
		if err := json.NewDecoder(configFile).Decode(&config); err != nil {
			return config, fmt.Errorf("decode %s: %w", filename, err)
		}
	}

	if err := env.Parse(&config); err != nil {
		return config, fmt.Errorf("parse environment: %w", err)
	}
	return config, nil
}

func InitPostgreSQL(config models.Config, logger *zap.Logger) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s user=%s dbname=%s password=%s sslmode=%s",
		config.DBHost, config.DBUser, config.DBName, config.DBPassword, config.DBSSLMode)

	const maxRetries = 3
	const retryInterval = 5 * time.Second
	var err error
	for i := 0; i <= maxRetries; i++ {
		var gormDB *gorm.DB
		gormDB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
		if err == nil {
			return gormDB, nil
		}
		logger.Error("データベース接続のリトライ", zap.Int("retry", i), zap.Error(err))
		if i < maxRetries {
			time.Sleep(retryInterval)
		}
	}
	return nil, fmt.Errorf("データベース接続に失敗しました: %w", err)
}

func InitRedis(config models.Config, logger *zap.Logger) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     config.RedisAddr,
		Password: config.RedisPassword,
		DB:       config.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		logger.Error("Failed to connect to Redis", zap.Error(err))
		return nil, err
	}

	logger.Info("Connected to Redis", zap.String("addr", config.RedisAddr))
	return rdb, nil
}
