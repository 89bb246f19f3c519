package auth

import (
	"errors"
	"fmt"
	"strings"

	"ludoserver/models"

	jwt "github.com/dgrijalva/jwt-go"
)

// JwtKey はトークンの署名鍵。起動時に設定ファイルの値で SetKey する
var JwtKey = []byte("your_secret_key")

var ErrInvalidCredential = errors.New("invalid credential")

func SetKey(secret string) {
	if secret != "" {
		JwtKey = []byte(secret)
	}
}

// ParseCredential は HS256 で署名された JWT を検証し、クレームを返します。
// "Bearer " プレフィックスは取り除く
func ParseCredential(tokenString string) (*models.MyClaims, error) {
	tokenString = strings.TrimPrefix(strings.TrimSpace(tokenString), "Bearer ")
	if tokenString == "" {
		return nil, fmt.Errorf("%w: token is empty", ErrInvalidCredential)
	}

	claims := &models.MyClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return JwtKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}
	if !token.Valid || claims.UserID == 0 {
		return nil, ErrInvalidCredential
	}
	return claims, nil
}
