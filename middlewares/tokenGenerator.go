package middlewares

import (
	"time"

	"ludoserver/auth"
	"ludoserver/models"

	jwt "github.com/dgrijalva/jwt-go"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// トークンの有効期限
const TokenLifetime = 72 * time.Hour

// GenerateToken はユーザーIDを内包したJWTトークンを生成します。
func GenerateToken(userID uint) (string, error) {
	claims := &models.MyClaims{
		UserID: userID,
		StandardClaims: jwt.StandardClaims{
			IssuedAt:  time.Now().Unix(),
			ExpiresAt: time.Now().Add(TokenLifetime).Unix(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(auth.JwtKey)
}

// GORMによるオートインクリメントユーザーIDを生成する関数
func GenerateUserID(db *gorm.DB, nickname string, logger *zap.Logger) (uint, error) {
	user := models.User{Nickname: nickname}
	if err := db.Create(&user).Error; err != nil {
		logger.Error("ユーザーID生成中にエラー発生", zap.Error(err))
		return 0, err
	}
	return user.ID, nil
}
