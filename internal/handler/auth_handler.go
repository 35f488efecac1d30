package handler

import (
	"log/slog"
	"net/http"
	"net/url"

	"github.com/hitoshi/blogman/internal/auth"
	"github.com/hitoshi/blogman/internal/middleware"
	"github.com/hitoshi/blogman/internal/view"
)

// AuthHandler はログイン・ログアウトのHTTPハンドラー。
type AuthHandler struct {
	base
	service      AuthService
	cookieSecure bool
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthService, pages PageRenderer, siteName string, cookieSecure bool, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		base:         newBase(pages, siteName, logger),
		service:      service,
		cookieSecure: cookieSecure,
	}
}

// LoginPage はログインフォームを表示する。
// ?error=CODE はIdPのエラーコードとして表示文言に変換する。対応表にないコードはそのまま表示する。
// GET /login
func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	p := h.page(r, "Login")
	if code := r.URL.Query().Get("error"); code != "" {
		p.Error = auth.ErrorMessage(code)
	}
	h.view.Render(w, http.StatusOK, view.PageLogin, p)
}

// Login はフォームの認証情報でログインし、Cookieを設定して管理画面へリダイレクトする。
// 認証に失敗した場合はエラーコード付きで/loginへリダイレクトする。
// POST /admin
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	email := r.PostFormValue("email")
	password := r.PostFormValue("password")

	result, err := h.service.Login(r.Context(), email, password)
	if err != nil {
		code := auth.ProviderErrorCode(err)
		if code == "" {
			h.logger.ErrorContext(r.Context(), "ログイン処理に失敗しました", slog.String("error", err.Error()))
			code = "LOGIN_FAILED"
		}
		http.Redirect(w, r, middleware.LoginPath+"?error="+url.QueryEscape(code), http.StatusSeeOther)
		return
	}

	middleware.SetSessionCookies(w, middleware.SessionCookies{
		Session:  result.SessionCookie,
		Username: result.DisplayName,
		Email:    result.Email,
	}, h.service.SessionTTL(), h.cookieSecure)

	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

// Logout はログイン情報のCookieを破棄して/loginへリダイレクトする。
// GET /logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	middleware.ClearSessionCookies(w)
	http.Redirect(w, r, middleware.LoginPath, http.StatusFound)
}
