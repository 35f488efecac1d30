package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/blogman/internal/model"
	"github.com/hitoshi/blogman/internal/view"
)

// PublicHandler は公開ページ（記事一覧・カテゴリ別一覧・記事）のHTTPハンドラー。
type PublicHandler struct {
	base
	articles      ArticleService
	taxonomy      TaxonomyService
	markdown      MarkdownRenderer
	whatsNewCount int
}

// NewPublicHandler はPublicHandlerを生成する。
func NewPublicHandler(articles ArticleService, taxonomy TaxonomyService, markdown MarkdownRenderer, pages PageRenderer, siteName string, whatsNewCount int, logger *slog.Logger) *PublicHandler {
	return &PublicHandler{
		base:          newBase(pages, siteName, logger),
		articles:      articles,
		taxonomy:      taxonomy,
		markdown:      markdown,
		whatsNewCount: whatsNewCount,
	}
}

// Index は公開済み記事の一覧を表示する。
// GET /
func (h *PublicHandler) Index(w http.ResponseWriter, r *http.Request) {
	articles, err := h.articles.ListReleased(r.Context())
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	cards, err := h.cards(r.Context(), articles)
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	h.view.Render(w, http.StatusOK, view.PageIndex, view.IndexData{
		Page:  h.page(r, "ブログ一覧"),
		Cards: cards,
	})
}

// Category はカテゴリに属する公開済み記事の一覧を表示する。
// 存在しないカテゴリでも空の一覧を表示する。
// GET /category/{category}
func (h *PublicHandler) Category(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")

	articles, err := h.articles.ListByCategory(r.Context(), category)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	name, err := h.taxonomy.CategoryName(r.Context(), category)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	cards, err := h.cards(r.Context(), articles)
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	h.view.Render(w, http.StatusOK, view.PageIndex, view.IndexData{
		Page:  h.page(r, fmt.Sprintf("「%s」の記事一覧", name)),
		Cards: cards,
	})
}

// Single は記事を表示する。未公開または存在しない記事は404ページを返す。
// GET /category/{category}/{slug}
func (h *PublicHandler) Single(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	article, err := h.articles.GetReleased(r.Context(), slug)
	if err != nil {
		if isNotFound(err) {
			h.notFound(w, r)
			return
		}
		h.serverError(w, r, err)
		return
	}

	thumbnail, err := h.markdown.RenderHTML(article.Thumbnail)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	contents, err := h.markdown.RenderHTML(article.Contents)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	whatsNew, categories, err := sidebar(r.Context(), h.articles, h.taxonomy, h.whatsNewCount)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	name, err := h.taxonomy.CategoryName(r.Context(), article.Category)
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	h.view.Render(w, http.StatusOK, view.PageSingle, view.SingleData{
		Page:         h.page(r, article.Title),
		Article:      article,
		CategoryName: name,
		Thumbnail:    thumbnail,
		Contents:     contents,
		WhatsNew:     whatsNew,
		Categories:   categories,
	})
}

// NotFound は未定義のパスに404ページを返す。
func (h *PublicHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	h.notFound(w, r)
}

// cards は記事一覧表示用にカテゴリ名とサムネイルHTMLを付与する。
func (h *PublicHandler) cards(ctx context.Context, articles []*model.Article) ([]view.ArticleCard, error) {
	names, err := h.taxonomy.CategoryNames(ctx)
	if err != nil {
		return nil, err
	}

	cards := make([]view.ArticleCard, len(articles))
	for i, a := range articles {
		thumbnail, err := h.markdown.RenderHTML(a.Thumbnail)
		if err != nil {
			return nil, err
		}
		name, ok := names[a.Category]
		if !ok {
			name = a.Category
		}
		cards[i] = view.ArticleCard{Article: a, CategoryName: name, Thumbnail: thumbnail}
	}
	return cards, nil
}

// sidebar は記事ページとプレビューで共通の What's New とカテゴリ一覧を取得する。
func sidebar(ctx context.Context, articles ArticleService, taxonomy TaxonomyService, n int) ([]*model.Article, []*model.Category, error) {
	whatsNew, err := articles.WhatsNew(ctx, n)
	if err != nil {
		return nil, nil, err
	}
	categories, err := taxonomy.ListCategories(ctx)
	if err != nil {
		return nil, nil, err
	}
	return whatsNew, categories, nil
}
