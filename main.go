package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"ludoserver/auth"
	"ludoserver/database"             //PostgreSQLとRedisの初期化、設定の読み込み
	"ludoserver/ludo"                 //WebSocket接続の受け口
	"ludoserver/ludo/actions"         //クライアントメッセージの処理
	"ludoserver/ludo/broadcast"       //スナップショットの配信
	"ludoserver/ludo/connection"      //資格情報の検証
	gamedb "ludoserver/ludo/database" //ルーム行とスナップショットの保存
	"ludoserver/ludo/registry"        //ルームの管理
	"ludoserver/middlewares"
	"ludoserver/migrations"
	"ludoserver/screens" //HTTPリクエストの処理
	"ludoserver/utils"   //ロガーの初期化とCronジョブ

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

func main() {
	// ログレベルも設定に含まれるため、ロガーより先に読み込む
	config, err := database.LoadConfig("config.json")
	if err != nil {
		panic(err)
	}

	logger, err := utils.InitLogger(config) // ロガーの初期化
	if err != nil {
		panic(err) // 失敗した場合はプログラム停止
	}
	defer logger.Sync() // ロガーのクリーンアップ

	if config.JWTSecret == "" {
		logger.Fatal("JWT_SECRET が設定されていません")
	}
	auth.SetKey(config.JWTSecret)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 非同期でPostgreSQLとRedisの初期化
	var db *gorm.DB
	var rdb *redis.Client
	done := make(chan bool)

	go func() {
		var err error
		db, err = database.InitPostgreSQL(config, logger)
		if err != nil {
			logger.Fatal("PostgreSQLの初期化に失敗しました", zap.Error(err))
		}
		done <- true
	}()

	go func() {
		var err error
		rdb, err = database.InitRedis(config, logger)
		if err != nil {
			logger.Fatal("Failed to initialize Redis", zap.Error(err))
		}
		done <- true
	}()

	// 2つの初期化が完了するのを待つ
	<-done
	<-done

	if err := migrations.AutoMigrate(db, logger); err != nil {
		logger.Fatal("マイグレーションに失敗しました", zap.Error(err))
	}

	// ルームの状態変化は配信、Redisへの保存、ルーム行の更新の順に通知される
	rooms := gamedb.NewGameRoomStore(db, logger)
	hub := broadcast.NewHub(logger)
	archive := gamedb.NewSnapshotArchive(rdb, time.Duration(config.SnapshotTTLHours)*time.Hour, logger)
	recorder := gamedb.NewRoomStateRecorder(rooms, logger)
	go archive.Run(ctx)
	go recorder.Run(ctx)

	reg := registry.New(rooms, registry.Config{
		IdleTimeout:      time.Duration(config.IdleTimeoutMinutes) * time.Minute,
		EndedRetention:   time.Duration(config.EndedRetentionMinutes) * time.Minute,
		SkipDisconnected: config.SkipDisconnected,
	}, logger, hub, archive, recorder)

	handler := &actions.Handler{
		Registry: reg,
		Hub:      hub,
		Auth:     connection.TokenAuthenticator{Users: rooms},
		Logger:   logger,
	}
	upgrader := ludo.NewUpgrader(config.AllowedOrigins)

	// クーロンスケジューラのセットアップと呼び出し
	scheduler, err := utils.CronCleaner(reg, rooms, logger)
	if err != nil {
		logger.Fatal("Cronジョブの登録に失敗しました", zap.Error(err))
	}
	defer scheduler.Stop()

	router := gin.New()
	//リクエストロガーを起動
	router.Use(gin.Recovery(), utils.RequestLogger(logger))

	//CORS（Cross-Origin Resource Sharing）ポリシーを設定
	router.Use(cors.New(cors.Config{
		AllowOrigins:     config.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	//各HTTPリクエストのルーティング
	router.POST("/auth", func(c *gin.Context) {
		screens.AuthHandler(c, db, logger)
	})
	router.POST("/rooms", middlewares.AuthMiddleware(logger), func(c *gin.Context) {
		screens.RoomCreateHandler(c, rooms, logger)
	})
	router.GET("/rooms/:code", func(c *gin.Context) {
		screens.RoomInfoHandler(c, reg, archive, logger)
	})
	router.GET("/ws", func(c *gin.Context) {
		ludo.HandleConnections(ctx, c.Writer, c.Request, handler, upgrader, logger)
	})

	srv := &http.Server{Addr: config.ListenAddr, Handler: router}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Failed to shut down server", zap.Error(err))
		}
	}()

	logger.Info("サーバーを起動します", zap.String("addr", config.ListenAddr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("Failed to run server", zap.Error(err))
	}
}
