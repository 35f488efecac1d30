// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/hitoshi/blogman/internal/auth"
	"github.com/hitoshi/blogman/internal/model"
)

// ログイン情報を保持するCookie名。
const (
	SessionCookieName  = "session"
	UsernameCookieName = "username"
	EmailCookieName    = "email"
)

// LoginPath は未ログイン時のリダイレクト先。
const LoginPath = "/login"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	adminContextKey       = contextKey("admin")
	adminHolderContextKey = contextKey("admin_holder")
)

// adminHolder はアクセスログに管理者を出力するため、後段で認証された管理者を受け取る。
type adminHolder struct {
	email string
}

func withAdminHolder(ctx context.Context, h *adminHolder) context.Context {
	return context.WithValue(ctx, adminHolderContextKey, h)
}

// SessionVerifier はセッションCookieの検証インターフェース。
// nilの場合はCookieの有無のみを確認する。
type SessionVerifier interface {
	Verify(ctx context.Context, cookie string) (*auth.SessionClaims, error)
}

// NewAdminAuthMiddleware は管理画面用の認証ミドルウェアを返す。
// セッションCookieがない、または検証に失敗した場合は/loginへリダイレクトする。
// 認証済みの管理者はリクエストコンテキストに注入する。
func NewAdminAuthMiddleware(verifier SessionVerifier, logger *slog.Logger) func(next http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				http.Redirect(w, r, LoginPath, http.StatusFound)
				return
			}

			admin := model.Admin{
				Name:  cookieValue(r, UsernameCookieName),
				Email: cookieValue(r, EmailCookieName),
			}

			if verifier != nil {
				claims, err := verifier.Verify(r.Context(), cookie.Value)
				if err != nil {
					logger.WarnContext(r.Context(), "セッションCookieが無効です",
						slog.String("path", r.URL.Path),
						slog.String("error", err.Error()),
					)
					ClearSessionCookies(w)
					http.Redirect(w, r, LoginPath, http.StatusFound)
					return
				}
				// プロフィール更新後はCookieのメールアドレスが新しい値になる
				if admin.Email == "" {
					admin.Email = claims.Email
				}
				if admin.Name == "" {
					admin.Name = claims.Name
				}
			}

			next.ServeHTTP(w, r.WithContext(ContextWithAdmin(r.Context(), admin)))
		})
	}
}

// AdminFromContext はリクエストコンテキストからログイン中の管理者を取得する。
func AdminFromContext(ctx context.Context) (model.Admin, bool) {
	admin, ok := ctx.Value(adminContextKey).(model.Admin)
	return admin, ok
}

// ContextWithAdmin はコンテキストに管理者を注入する。
func ContextWithAdmin(ctx context.Context, admin model.Admin) context.Context {
	if h, ok := ctx.Value(adminHolderContextKey).(*adminHolder); ok {
		h.email = admin.Email
	}
	return context.WithValue(ctx, adminContextKey, admin)
}

// SessionCookies はログイン時に発行するCookieの値。
type SessionCookies struct {
	Session  string
	Username string
	Email    string
}

// SetSessionCookies はログイン情報のCookieを設定する。
// 表示名は日本語を含むためURLエンコードして保存する。
func SetSessionCookies(w http.ResponseWriter, c SessionCookies, ttl time.Duration, secure bool) {
	expires := time.Now().Add(ttl)
	set := func(name, value string, httpOnly bool) {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    value,
			Path:     "/",
			Expires:  expires,
			MaxAge:   int(ttl / time.Second),
			HttpOnly: httpOnly,
			Secure:   secure,
			SameSite: http.SameSiteLaxMode,
		})
	}
	set(SessionCookieName, c.Session, true)
	set(UsernameCookieName, url.QueryEscape(c.Username), false)
	set(EmailCookieName, url.QueryEscape(c.Email), false)
}

// SetProfileCookies はプロフィール更新後に表示名とメールアドレスのCookieを更新する。
// セッションCookieは変更しない。
func SetProfileCookies(w http.ResponseWriter, username, email string, ttl time.Duration, secure bool) {
	expires := time.Now().Add(ttl)
	for name, value := range map[string]string{UsernameCookieName: username, EmailCookieName: email} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    url.QueryEscape(value),
			Path:     "/",
			Expires:  expires,
			MaxAge:   int(ttl / time.Second),
			Secure:   secure,
			SameSite: http.SameSiteLaxMode,
		})
	}
}

// ClearSessionCookies はログイン情報のCookieをすべて破棄する。
func ClearSessionCookies(w http.ResponseWriter) {
	for _, name := range []string{SessionCookieName, UsernameCookieName, EmailCookieName} {
		http.SetCookie(w, &http.Cookie{
			Name:    name,
			Value:   "",
			Path:    "/",
			Expires: time.Unix(0, 0),
			MaxAge:  -1,
		})
	}
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	v, err := url.QueryUnescape(c.Value)
	if err != nil {
		return c.Value
	}
	return v
}
