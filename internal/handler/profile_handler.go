package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/blogman/internal/middleware"
	"github.com/hitoshi/blogman/internal/model"
	"github.com/hitoshi/blogman/internal/view"
)

const profilePath = adminPath + "/profile"

// ProfileHandler は管理者情報画面のHTTPハンドラー。
type ProfileHandler struct {
	base
	service      ProfileService
	cookieTTL    time.Duration
	cookieSecure bool
}

// NewProfileHandler はProfileHandlerを生成する。
func NewProfileHandler(service ProfileService, pages PageRenderer, siteName string, cookieTTL time.Duration, cookieSecure bool, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{
		base:         newBase(pages, siteName, logger),
		service:      service,
		cookieTTL:    cookieTTL,
		cookieSecure: cookieSecure,
	}
}

// Page はログイン中の管理者の情報を表示する。
// GET /admin/profile
func (h *ProfileHandler) Page(w http.ResponseWriter, r *http.Request) {
	admin, _ := middleware.AdminFromContext(r.Context())
	user, err := h.service.GetProfile(r.Context(), admin.Email)
	if err != nil {
		if model.ErrorCode(err) == model.ErrCodeUserNotFound {
			h.notFound(w, r)
			return
		}
		h.serverError(w, r, err)
		return
	}
	p := h.page(r, "プロフィール")
	if r.URL.Query().Has("updated") {
		p.Message = "管理者情報を更新しました。"
	}
	h.view.Render(w, http.StatusOK, view.PageProfile, view.ProfileData{Page: p, User: user})
}

// Update は管理者の表示名・メールアドレス・パスワードを更新し、表示用のCookieを書き換える。
// POST /admin/profile/update
func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	admin, _ := middleware.AdminFromContext(r.Context())
	user, err := h.service.UpdateProfile(r.Context(), admin.Email, model.ProfileUpdate{
		Email:           r.PostFormValue("email"),
		DisplayName:     r.PostFormValue("displayName"),
		Password:        r.PostFormValue("password"),
		PasswordConfirm: r.PostFormValue("tmp_password"),
	})
	if err != nil {
		h.redirectWithError(w, r, profilePath, err)
		return
	}

	middleware.SetProfileCookies(w, user.DisplayName, user.Email, h.cookieTTL, h.cookieSecure)
	http.Redirect(w, r, profilePath+"?updated=1", http.StatusSeeOther)
}
