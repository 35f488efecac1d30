package model

import "time"

// AdminUser は外部IdPに登録された管理者ユーザーを表す。
type AdminUser struct {
	LocalID       string
	Email         string
	DisplayName   string
	EmailVerified bool
	CreatedAt     time.Time
	LastLoginAt   time.Time
}

// LoginResult はログイン成功時に得られる情報を表す。
// SessionCookieはIdPが発行したセッションCookieの値。
type LoginResult struct {
	LocalID       string
	Email         string
	DisplayName   string
	IDToken       string
	SessionCookie string
}

// ProfileUpdate は管理者情報の更新内容を表す。空文字列のフィールドは変更しない。
type ProfileUpdate struct {
	Email           string
	DisplayName     string
	Password        string
	PasswordConfirm string
}

// Admin はセッションCookieから復元したログイン中の管理者を表す。
type Admin struct {
	Name  string
	Email string
}
