package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/blogman/internal/model"
	"github.com/hitoshi/blogman/internal/view"
)

const (
	categoryPath = adminPath + "/category"
	tagPath      = adminPath + "/tag"

	categoryNamePrefix = "cat_name_"
	categorySlugPrefix = "cat_slug_"
)

// TaxonomyHandler はカテゴリ・タグ管理画面のHTTPハンドラー。
type TaxonomyHandler struct {
	base
	service TaxonomyService
}

// NewTaxonomyHandler はTaxonomyHandlerを生成する。
func NewTaxonomyHandler(service TaxonomyService, pages PageRenderer, siteName string, logger *slog.Logger) *TaxonomyHandler {
	return &TaxonomyHandler{base: newBase(pages, siteName, logger), service: service}
}

// Categories はカテゴリ一覧と編集フォームを表示する。
// GET /admin/category
func (h *TaxonomyHandler) Categories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.ListCategories(r.Context())
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	h.view.Render(w, http.StatusOK, view.PageCategory, view.CategoryData{
		Page:       h.page(r, "カテゴリ"),
		Categories: categories,
	})
}

// AddCategory はカテゴリを追加する。
// POST /admin/category/add
func (h *TaxonomyHandler) AddCategory(w http.ResponseWriter, r *http.Request) {
	_, err := h.service.CreateCategory(r.Context(), r.PostFormValue("new_cat_name"), r.PostFormValue("new_cat_slug"))
	if err != nil {
		h.redirectWithError(w, r, categoryPath, err)
		return
	}
	http.Redirect(w, r, categoryPath, http.StatusSeeOther)
}

// UpdateCategories はcat_name_{slug} / cat_slug_{slug} のフィールドからカテゴリを一括更新する。
// POST /admin/category/update
func (h *TaxonomyHandler) UpdateCategories(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.redirectWithError(w, r, categoryPath, model.NewInvalidInputError("フォームの解析に失敗しました"))
		return
	}
	if err := h.service.BulkUpdate(r.Context(), categoryUpdatesFromForm(r)); err != nil {
		h.redirectWithError(w, r, categoryPath, err)
		return
	}
	http.Redirect(w, r, categoryPath, http.StatusSeeOther)
}

// DeleteCategory はカテゴリを削除する。記事側のカテゴリ参照は残る。
// GET /admin/category/delete?slug=
func (h *TaxonomyHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	slug := r.URL.Query().Get("slug")
	if slug == "" {
		http.Redirect(w, r, categoryPath, http.StatusSeeOther)
		return
	}
	if err := h.service.DeleteCategory(r.Context(), slug); err != nil {
		h.redirectWithError(w, r, categoryPath, err)
		return
	}
	http.Redirect(w, r, categoryPath, http.StatusSeeOther)
}

// Tags はタグ一覧と追加フォームを表示する。
// GET /admin/tag
func (h *TaxonomyHandler) Tags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.service.ListTags(r.Context())
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	h.view.Render(w, http.StatusOK, view.PageTag, view.TagData{
		Page: h.page(r, "タグ"),
		Tags: tags,
	})
}

// AddTag はタグを追加する。
// POST /admin/tag/add
func (h *TaxonomyHandler) AddTag(w http.ResponseWriter, r *http.Request) {
	_, err := h.service.CreateTag(r.Context(), r.PostFormValue("new_tag_name"), r.PostFormValue("new_tag_slug"))
	if err != nil {
		h.redirectWithError(w, r, tagPath, err)
		return
	}
	http.Redirect(w, r, tagPath, http.StatusSeeOther)
}

// DeleteTag はタグを削除する。
// GET /admin/tag/delete?slug=
func (h *TaxonomyHandler) DeleteTag(w http.ResponseWriter, r *http.Request) {
	slug := r.URL.Query().Get("slug")
	if slug == "" {
		http.Redirect(w, r, tagPath, http.StatusSeeOther)
		return
	}
	if err := h.service.DeleteTag(r.Context(), slug); err != nil {
		h.redirectWithError(w, r, tagPath, err)
		return
	}
	http.Redirect(w, r, tagPath, http.StatusSeeOther)
}

// categoryUpdatesFromForm は更新前のslugをキーにした更新内容を組み立てる。
func categoryUpdatesFromForm(r *http.Request) map[string]model.CategoryUpdate {
	updates := make(map[string]model.CategoryUpdate)
	for key, values := range r.PostForm {
		if len(values) == 0 {
			continue
		}
		value := values[0]
		switch {
		case strings.HasPrefix(key, categoryNamePrefix):
			slug := strings.TrimPrefix(key, categoryNamePrefix)
			u := updates[slug]
			u.Name = &value
			updates[slug] = u
		case strings.HasPrefix(key, categorySlugPrefix):
			slug := strings.TrimPrefix(key, categorySlugPrefix)
			u := updates[slug]
			u.Slug = &value
			updates[slug] = u
		}
	}
	return updates
}
