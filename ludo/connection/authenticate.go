package connection

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"ludoserver/auth"
)

// ErrUnknownUser はトークンは正しいがユーザーが存在しない
var ErrUnknownUser = errors.New("unknown user")

// Authenticator は AUTH のクレデンシャルを検証し、プレイヤーIDを返します。
type Authenticator interface {
	Authenticate(ctx context.Context, credential string) (string, error)
}

// UserStore はユーザーの存在を確認します（PostgreSQL）。
type UserStore interface {
	UserExists(ctx context.Context, id uint) (bool, error)
}

// TokenAuthenticator は JWT を検証する Authenticator。Users が nil ならDB照会をしない
type TokenAuthenticator struct {
	Users UserStore
}

func (a TokenAuthenticator) Authenticate(ctx context.Context, credential string) (string, error) {
	claims, err := auth.ParseCredential(credential)
	if err != nil {
		return "", err
	}

	if a.Users != nil {
		ok, err := a.Users.UserExists(ctx, claims.UserID)
		if err != nil {
			return "", fmt.Errorf("user fetch failed: %w", err)
		}
		if !ok {
			return "", fmt.Errorf("%w: %d", ErrUnknownUser, claims.UserID)
		}
	}
	return strconv.FormatUint(uint64(claims.UserID), 10), nil
}
