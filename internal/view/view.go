// Package view はhtml/templateによるページ描画を提供する。
// テンプレートはバイナリに埋め込み、ページごとにbase.htmlと組み合わせて解析する。
package view

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/hitoshi/blogman/internal/media"
	"github.com/hitoshi/blogman/internal/model"
)

//go:embed templates/*.html
var templateFS embed.FS

// ページ名。テンプレートファイル名から拡張子を除いたもの。
const (
	PageIndex    = "index"
	PageSingle   = "single"
	PagePreview  = "preview"
	PageLogin    = "login"
	PageAdmin    = "admin"
	PageEdit     = "edit"
	PageMedia    = "media"
	PageProfile  = "profile"
	PageCategory = "category"
	PageTag      = "tag"
	PageNotFound = "404"
	PageError    = "error"
)

var pages = []string{
	PageIndex, PageSingle, PagePreview, PageLogin, PageAdmin, PageEdit,
	PageMedia, PageProfile, PageCategory, PageTag, PageNotFound, PageError,
}

// Page は全ページ共通の表示データ。
type Page struct {
	Title     string
	SiteName  string
	Admin     *model.Admin
	CSRFToken string
	Error     string
	Message   string
}

// ArticleCard は一覧に表示する記事1件分。
type ArticleCard struct {
	Article      *model.Article
	CategoryName string
	Thumbnail    template.HTML
}

// IndexData は記事一覧ページの表示データ。
type IndexData struct {
	Page
	Cards []ArticleCard
}

// SingleData は記事ページの表示データ。
type SingleData struct {
	Page
	Article      *model.Article
	CategoryName string
	Thumbnail    template.HTML
	Contents     template.HTML
	WhatsNew     []*model.Article
	Categories   []*model.Category
}

// PreviewData はプレビューページの表示データ。保存前の入力から組み立てる。
type PreviewData struct {
	Page
	Category   string
	Tags       []string
	Thumbnail  template.HTML
	Contents   template.HTML
	WhatsNew   []*model.Article
	Categories []*model.Category
}

// AdminData は管理者トップの表示データ。
type AdminData struct {
	Page
	Articles []*model.Article
}

// EditData は記事作成・編集フォームの表示データ。Articleがnilなら新規作成。
type EditData struct {
	Page
	Action     string
	Article    *model.Article
	Categories []*model.Category
	Tags       []*model.Tag
}

// SelectedTags は編集中の記事に付いているタグのslugを返す。
func (d EditData) SelectedTags() []string {
	if d.Article == nil {
		return nil
	}
	return d.Article.Tags
}

// MediaData はメディア管理ページの表示データ。
type MediaData struct {
	Page
	Images []media.Image
}

// ProfileData は管理者情報ページの表示データ。
type ProfileData struct {
	Page
	User *model.AdminUser
}

// CategoryData はカテゴリ管理ページの表示データ。
type CategoryData struct {
	Page
	Categories []*model.Category
}

// TagData はタグ管理ページの表示データ。
type TagData struct {
	Page
	Tags []*model.Tag
}

// Renderer はページテンプレートを保持し、HTMLを書き出す。
type Renderer struct {
	pages  map[string]*template.Template
	logger *slog.Logger
}

// New は埋め込みテンプレートを解析してRendererを生成する。
func New(logger *slog.Logger) (*Renderer, error) {
	return newRenderer(templateFS, logger)
}

func newRenderer(fsys fs.FS, logger *slog.Logger) (*Renderer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Renderer{pages: make(map[string]*template.Template, len(pages)), logger: logger}
	for _, name := range pages {
		tmpl, err := template.New(name).Funcs(funcs).ParseFS(fsys, "templates/base.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("テンプレート %s の解析に失敗しました: %w", name, err)
		}
		r.pages[name] = tmpl
	}
	return r, nil
}

// Render はページを描画してstatusで書き出す。
// 実行エラーで途中まで書き出さないよう、バッファに描画してから送信する。
func (r *Renderer) Render(w http.ResponseWriter, status int, page string, data any) {
	tmpl, ok := r.pages[page]
	if !ok {
		r.logger.Error("未定義のテンプレートです", slog.String("page", page))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base", data); err != nil {
		r.logger.Error("テンプレートの描画に失敗しました",
			slog.String("page", page),
			slog.String("error", err.Error()),
		)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

var funcs = template.FuncMap{
	"date": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format("2006/01/02")
	},
	"datetime": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format("2006/01/02 15:04")
	},
	"articleURL": func(a *model.Article) string {
		return "/category/" + url.PathEscape(a.Category) + "/" + url.PathEscape(a.Slug)
	},
	"categoryURL": func(slug string) string {
		return "/category/" + url.PathEscape(slug)
	},
	"join":     strings.Join,
	"contains": func(list []string, v string) bool {
		return slices.Contains(list, v)
	},
}
