// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, content, media, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeSlugConflict     = "SLUG_CONFLICT"
	ErrCodeInvalidInput     = "INVALID_INPUT"
	ErrCodeArticleNotFound  = "ARTICLE_NOT_FOUND"
	ErrCodeCategoryNotFound = "CATEGORY_NOT_FOUND"
	ErrCodeTagNotFound      = "TAG_NOT_FOUND"
	ErrCodeUserNotFound     = "USER_NOT_FOUND"
	ErrCodePasswordMismatch = "PASSWORD_MISMATCH"
	ErrCodeInvalidMedia     = "INVALID_MEDIA"
	ErrCodeMediaTooLarge    = "MEDIA_TOO_LARGE"
	ErrCodeSSRFBlocked      = "SSRF_BLOCKED"
	ErrCodeFetchFailed      = "FETCH_FAILED"
)

// ErrorCode はerrがAPIErrorであればそのコードを返す。それ以外は空文字列を返す。
func ErrorCode(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return ""
}

// NewSlugConflictError はslug重複エラーを生成する。
func NewSlugConflictError(slug string) *APIError {
	return &APIError{
		Code:     ErrCodeSlugConflict,
		Message:  fmt.Sprintf("指定されたslugは既に存在します: %s", slug),
		Category: "validation",
		Action:   "別のslugを指定してください。",
	}
}

// NewInvalidInputError は入力値不正エラーを生成する。
func NewInvalidInputError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidInput,
		Message:  fmt.Sprintf("入力値が不正です: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewArticleNotFoundError は記事未検出エラーを生成する。
func NewArticleNotFoundError(slug string) *APIError {
	return &APIError{
		Code:     ErrCodeArticleNotFound,
		Message:  fmt.Sprintf("指定された記事が見つかりません: %s", slug),
		Category: "content",
		Action:   "記事のslugを確認してください。",
	}
}

// NewCategoryNotFoundError はカテゴリ未検出エラーを生成する。
func NewCategoryNotFoundError(slug string) *APIError {
	return &APIError{
		Code:     ErrCodeCategoryNotFound,
		Message:  fmt.Sprintf("指定されたカテゴリが見つかりません: %s", slug),
		Category: "content",
		Action:   "カテゴリのslugを確認してください。",
	}
}

// NewTagNotFoundError はタグ未検出エラーを生成する。
func NewTagNotFoundError(slug string) *APIError {
	return &APIError{
		Code:     ErrCodeTagNotFound,
		Message:  fmt.Sprintf("指定されたタグが見つかりません: %s", slug),
		Category: "content",
		Action:   "タグのslugを確認してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewPasswordMismatchError は確認用パスワード不一致エラーを生成する。
func NewPasswordMismatchError() *APIError {
	return &APIError{
		Code:     ErrCodePasswordMismatch,
		Message:  "パスワードと確認用パスワードが一致しません。",
		Category: "validation",
		Action:   "同じパスワードを2回入力してください。",
	}
}

// NewInvalidMediaError はアップロード不可のメディアエラーを生成する。
func NewInvalidMediaError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidMedia,
		Message:  fmt.Sprintf("アップロードできないファイルです: %s", reason),
		Category: "media",
		Action:   "png, jpg, bmp, gif 形式の画像を指定してください。",
	}
}

// NewMediaTooLargeError はメディアサイズ超過エラーを生成する。
func NewMediaTooLargeError(limit int64) *APIError {
	return &APIError{
		Code:     ErrCodeMediaTooLarge,
		Message:  fmt.Sprintf("ファイルサイズが上限（%dバイト）を超えています。", limit),
		Category: "media",
		Action:   "サイズを小さくしてから再度アップロードしてください。",
	}
}

// NewSSRFBlockedError はSSRFブロックエラーを生成する。
func NewSSRFBlockedError() *APIError {
	return &APIError{
		Code:     ErrCodeSSRFBlocked,
		Message:  "セキュリティポリシーにより、指定されたURLへのアクセスがブロックされました。",
		Category: "validation",
		Action:   "公開されているWebサイトの画像URLを入力してください。",
	}
}

// NewFetchFailedError はリモート画像の取得失敗エラーを生成する。
func NewFetchFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeFetchFailed,
		Message:  fmt.Sprintf("URLの取得に失敗しました: %s", reason),
		Category: "media",
		Action:   "URLが正しいか確認し、しばらく待ってから再度お試しください。",
	}
}
