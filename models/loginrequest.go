package models

// LoginRequest は POST /auth のリクエストボディ。
// Authorization ヘッダーに有効なトークンがあれば同じユーザーで新しいトークンを発行します。
type LoginRequest struct {
	Nickname string `json:"nickname,omitempty" binding:"max=32"` // 表示名
}
