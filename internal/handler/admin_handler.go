package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/blogman/internal/model"
	"github.com/hitoshi/blogman/internal/view"
)

const adminPath = "/admin"

// AdminHandler は記事管理画面のHTTPハンドラー。
type AdminHandler struct {
	base
	articles      ArticleService
	taxonomy      TaxonomyService
	markdown      MarkdownRenderer
	whatsNewCount int
}

// NewAdminHandler はAdminHandlerを生成する。
func NewAdminHandler(articles ArticleService, taxonomy TaxonomyService, markdown MarkdownRenderer, pages PageRenderer, siteName string, whatsNewCount int, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		base:          newBase(pages, siteName, logger),
		articles:      articles,
		taxonomy:      taxonomy,
		markdown:      markdown,
		whatsNewCount: whatsNewCount,
	}
}

// Dashboard は下書きを含む全記事の一覧を表示する。
// GET /admin
func (h *AdminHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	articles, err := h.articles.ListAll(r.Context())
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	h.view.Render(w, http.StatusOK, view.PageAdmin, view.AdminData{
		Page:     h.page(r, "管理画面"),
		Articles: articles,
	})
}

// New は新規記事の作成フォームを表示する。
// GET /admin/new
func (h *AdminHandler) New(w http.ResponseWriter, r *http.Request) {
	h.renderForm(w, r, "新規作成", "add", nil)
}

// Edit は既存記事の編集フォームを表示する。
// GET /admin/edit/{slug}
func (h *AdminHandler) Edit(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	article, err := h.articles.Get(r.Context(), slug)
	if err != nil {
		h.redirectWithError(w, r, adminPath, err)
		return
	}
	h.renderForm(w, r, "記事編集", "article/update", article)
}

// Add は新規記事を保存する。previewが送られた場合は保存せずプレビューを表示する。
// POST /admin/add
func (h *AdminHandler) Add(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.redirectWithError(w, r, adminPath+"/new", model.NewInvalidInputError("フォームの解析に失敗しました"))
		return
	}
	input := articleInputFromForm(r)
	if r.PostForm.Has("preview") {
		h.preview(w, r, input)
		return
	}

	input.Author = adminName(r)
	if _, err := h.articles.Create(r.Context(), input); err != nil {
		h.redirectWithError(w, r, adminPath+"/new", err)
		return
	}
	http.Redirect(w, r, adminPath, http.StatusSeeOther)
}

// Update はoriginal_slugの記事を更新する。previewが送られた場合は保存せずプレビューを表示する。
// POST /admin/article/update
func (h *AdminHandler) Update(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.redirectWithError(w, r, adminPath, model.NewInvalidInputError("フォームの解析に失敗しました"))
		return
	}
	input := articleInputFromForm(r)
	if r.PostForm.Has("preview") {
		h.preview(w, r, input)
		return
	}

	originalSlug := r.PostFormValue("original_slug")
	if originalSlug == "" {
		h.redirectWithError(w, r, adminPath, model.NewInvalidInputError("更新対象の記事が指定されていません"))
		return
	}

	_, err := h.articles.Update(r.Context(), originalSlug, model.ArticleUpdate{
		Title:       input.Title,
		Thumbnail:   input.Thumbnail,
		Description: input.Description,
		Slug:        input.Slug,
		Contents:    input.Contents,
		Category:    input.Category,
		Tags:        input.Tags,
		Released:    input.Released,
	})
	if err != nil {
		h.redirectWithError(w, r, adminPath+"/edit/"+originalSlug, err)
		return
	}
	http.Redirect(w, r, adminPath, http.StatusSeeOther)
}

// Delete はクエリのslugに一致する記事を削除する。slugがない場合は何もせず管理画面へ戻る。
// GET /admin/article/delete?slug=
func (h *AdminHandler) Delete(w http.ResponseWriter, r *http.Request) {
	slug := r.URL.Query().Get("slug")
	if slug == "" {
		http.Redirect(w, r, adminPath, http.StatusSeeOther)
		return
	}
	if err := h.articles.Delete(r.Context(), slug); err != nil {
		h.redirectWithError(w, r, adminPath, err)
		return
	}
	http.Redirect(w, r, adminPath, http.StatusSeeOther)
}

func (h *AdminHandler) renderForm(w http.ResponseWriter, r *http.Request, title, action string, article *model.Article) {
	categories, err := h.taxonomy.ListCategories(r.Context())
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	tags, err := h.taxonomy.ListTags(r.Context())
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	h.view.Render(w, http.StatusOK, view.PageEdit, view.EditData{
		Page:       h.page(r, title),
		Action:     action,
		Article:    article,
		Categories: categories,
		Tags:       tags,
	})
}

// preview は保存前の入力をHTMLに変換して表示する。記事は書き込まない。
func (h *AdminHandler) preview(w http.ResponseWriter, r *http.Request, input model.ArticleInput) {
	thumbnail, err := h.markdown.RenderHTML(input.Thumbnail)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	contents, err := h.markdown.RenderHTML(input.Contents)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	whatsNew, categories, err := sidebar(r.Context(), h.articles, h.taxonomy, h.whatsNewCount)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	name, err := h.taxonomy.CategoryName(r.Context(), input.Category)
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	h.view.Render(w, http.StatusOK, view.PagePreview, view.PreviewData{
		Page:       h.page(r, input.Title),
		Category:   name,
		Tags:       input.Tags,
		Thumbnail:  thumbnail,
		Contents:   contents,
		WhatsNew:   whatsNew,
		Categories: categories,
	})
}

// articleInputFromForm は記事フォームの値を読み取る。draftが送られた場合は非公開で保存する。
func articleInputFromForm(r *http.Request) model.ArticleInput {
	tags := make([]string, 0, len(r.PostForm["tags"]))
	for _, t := range r.PostForm["tags"] {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return model.ArticleInput{
		Title:       strings.TrimSpace(r.PostFormValue("title")),
		Thumbnail:   r.PostFormValue("thumbnail"),
		Contents:    r.PostFormValue("contents"),
		Description: strings.TrimSpace(r.PostFormValue("description")),
		Slug:        r.PostFormValue("slug"),
		Category:    r.PostFormValue("category"),
		Tags:        tags,
		Released:    !r.PostForm.Has("draft"),
	}
}
