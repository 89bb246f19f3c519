package models

// Config はサーバーの設定情報を保持します。
// config.json の値を環境変数で上書きできます。
type Config struct {
	DBHost     string `json:"db_host" env:"DB_HOST"`
	DBUser     string `json:"db_user" env:"DB_USER"`
	DBPassword string `json:"db_password" env:"DB_PASSWORD"`
	DBName     string `json:"db_name" env:"DB_NAME"`
	DBSSLMode  string `json:"db_sslmode" env:"DB_SSLMODE"`

	RedisAddr     string `json:"redis_addr" env:"REDIS_ADDR"`
	RedisPassword string `json:"redis_password" env:"REDIS_PASSWORD"`
	RedisDB       int    `json:"redis_db" env:"REDIS_DB"`

	JWTSecret      string   `json:"jwt_secret" env:"JWT_SECRET"`
	ListenAddr     string   `json:"listen_addr" env:"LISTEN_ADDR"`
	AllowedOrigins []string `json:"allowed_origins" env:"ALLOWED_ORIGINS" envSeparator:","`

	IdleTimeoutMinutes    int  `json:"idle_timeout_minutes" env:"IDLE_TIMEOUT_MINUTES"`
	EndedRetentionMinutes int  `json:"ended_retention_minutes" env:"ENDED_RETENTION_MINUTES"`
	SnapshotTTLHours      int  `json:"snapshot_ttl_hours" env:"SNAPSHOT_TTL_HOURS"`
	SkipDisconnected      bool `json:"skip_disconnected" env:"SKIP_DISCONNECTED"`

	LogLevel       string `json:"log_level" env:"LOG_LEVEL"`             // debug, info, warn, error
	LogDevelopment bool   `json:"log_development" env:"LOG_DEVELOPMENT"` // コンソール形式で出力
}
