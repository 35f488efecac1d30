// Package handler はHTTPハンドラーとルーティングを提供する。
package handler

import (
	"context"
	"errors"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/hitoshi/blogman/internal/media"
	"github.com/hitoshi/blogman/internal/middleware"
	"github.com/hitoshi/blogman/internal/model"
	"github.com/hitoshi/blogman/internal/view"
)

// ArticleService は記事ハンドラーが必要とするサービスインターフェース。
type ArticleService interface {
	Create(ctx context.Context, input model.ArticleInput) (*model.Article, error)
	Get(ctx context.Context, slug string) (*model.Article, error)
	GetReleased(ctx context.Context, slug string) (*model.Article, error)
	ListReleased(ctx context.Context) ([]*model.Article, error)
	ListAll(ctx context.Context) ([]*model.Article, error)
	ListByCategory(ctx context.Context, category string) ([]*model.Article, error)
	WhatsNew(ctx context.Context, n int) ([]*model.Article, error)
	Update(ctx context.Context, originalSlug string, update model.ArticleUpdate) (*model.Article, error)
	Delete(ctx context.Context, slug string) error
}

// TaxonomyService はカテゴリ・タグのサービスインターフェース。
type TaxonomyService interface {
	ListCategories(ctx context.Context) ([]*model.Category, error)
	CreateCategory(ctx context.Context, name, slug string) (*model.Category, error)
	BulkUpdate(ctx context.Context, updates map[string]model.CategoryUpdate) error
	DeleteCategory(ctx context.Context, slug string) error
	CategoryName(ctx context.Context, slug string) (string, error)
	CategoryNames(ctx context.Context) (map[string]string, error)
	ListTags(ctx context.Context) ([]*model.Tag, error)
	CreateTag(ctx context.Context, name, slug string) (*model.Tag, error)
	DeleteTag(ctx context.Context, slug string) error
}

// AuthService はログイン処理のサービスインターフェース。
type AuthService interface {
	Login(ctx context.Context, email, password string) (*model.LoginResult, error)
	SessionTTL() time.Duration
}

// ProfileService は管理者プロフィールのサービスインターフェース。
type ProfileService interface {
	GetProfile(ctx context.Context, email string) (*model.AdminUser, error)
	UpdateProfile(ctx context.Context, email string, update model.ProfileUpdate) (*model.AdminUser, error)
}

// MediaStore は画像の保存・一覧のインターフェース。
type MediaStore interface {
	Save(ctx context.Context, filename string, r io.Reader) (string, error)
	Import(ctx context.Context, rawURL string) (string, error)
	List() ([]media.Image, error)
}

// MarkdownRenderer はMarkdownを安全なHTMLに変換する。
type MarkdownRenderer interface {
	RenderHTML(source string) (template.HTML, error)
}

// PageRenderer はHTMLページを描画する。
type PageRenderer interface {
	Render(w http.ResponseWriter, status int, page string, data any)
}

const notFoundTitle = "お探しの記事は見つかりませんでした。"

// adminErrorMessages は管理画面でリダイレクト時に渡すエラーコードの表示文言。
var adminErrorMessages = map[string]string{
	model.ErrCodeSlugConflict:     "指定されたslugは既に使われています。",
	model.ErrCodeInvalidInput:     "入力内容を確認してください。",
	model.ErrCodeArticleNotFound:  "指定された記事が見つかりません。",
	model.ErrCodeCategoryNotFound: "指定されたカテゴリが見つかりません。",
	model.ErrCodeTagNotFound:      "指定されたタグが見つかりません。",
	model.ErrCodeUserNotFound:     "ユーザーが見つかりません。",
	model.ErrCodePasswordMismatch: "パスワードと確認用パスワードが一致しません。",
	model.ErrCodeInvalidMedia:     "アップロードできるのは png, jpg, bmp, gif 形式の画像です。",
	model.ErrCodeMediaTooLarge:    "ファイルサイズが上限を超えています。",
	model.ErrCodeSSRFBlocked:      "指定されたURLにはアクセスできません。",
	model.ErrCodeFetchFailed:      "画像の取得に失敗しました。",
}

// base は各ハンドラーが共有する描画処理をまとめる。
type base struct {
	view     PageRenderer
	siteName string
	logger   *slog.Logger
}

func newBase(view PageRenderer, siteName string, logger *slog.Logger) base {
	if logger == nil {
		logger = slog.Default()
	}
	return base{view: view, siteName: siteName, logger: logger}
}

// page はリクエストから共通の表示データを組み立てる。
// ?error=CODE は文言に変換して表示する。
func (b base) page(r *http.Request, title string) view.Page {
	p := view.Page{
		Title:     title,
		SiteName:  b.siteName,
		CSRFToken: middleware.CSRFTokenFromContext(r.Context()),
	}
	if admin, ok := middleware.AdminFromContext(r.Context()); ok {
		p.Admin = &admin
	}
	if code := r.URL.Query().Get("error"); code != "" {
		p.Error = code
		if msg, ok := adminErrorMessages[code]; ok {
			p.Error = msg
		}
	}
	return p
}

func (b base) notFound(w http.ResponseWriter, r *http.Request) {
	b.view.Render(w, http.StatusNotFound, view.PageNotFound, b.page(r, notFoundTitle))
}

func (b base) serverError(w http.ResponseWriter, r *http.Request, err error) {
	b.logger.ErrorContext(r.Context(), "リクエストの処理に失敗しました",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	b.view.Render(w, http.StatusInternalServerError, view.PageError, b.page(r, "エラーが発生しました"))
}

// redirectWithError はエラーコードをクエリに付けてリダイレクトする。
// APIError以外のエラーはサーバーエラーとして扱う。
func (b base) redirectWithError(w http.ResponseWriter, r *http.Request, to string, err error) {
	code := model.ErrorCode(err)
	if code == "" {
		b.serverError(w, r, err)
		return
	}
	b.logger.WarnContext(r.Context(), "管理操作が拒否されました",
		slog.String("path", r.URL.Path),
		slog.String("code", code),
	)
	http.Redirect(w, r, to+"?error="+url.QueryEscape(code), http.StatusSeeOther)
}

func isNotFound(err error) bool {
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.Code {
	case model.ErrCodeArticleNotFound, model.ErrCodeCategoryNotFound, model.ErrCodeTagNotFound:
		return true
	}
	return false
}

// adminName はログイン中の管理者の表示名を返す。
func adminName(r *http.Request) string {
	admin, _ := middleware.AdminFromContext(r.Context())
	return admin.Name
}
