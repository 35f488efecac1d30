package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/hitoshi/blogman/internal/middleware"
	"github.com/hitoshi/blogman/internal/model"
)

// APIHandler は公開記事を読み取り専用のJSONで返すハンドラー。
type APIHandler struct {
	articles ArticleService
	baseURL  string
	logger   *slog.Logger
}

// NewAPIHandler はAPIHandlerを生成する。
func NewAPIHandler(articles ArticleService, baseURL string, logger *slog.Logger) *APIHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &APIHandler{articles: articles, baseURL: baseURL, logger: logger}
}

// ArticleResponse は記事1件のJSON表現。本文はマークダウンのまま返す。
type ArticleResponse struct {
	Title       string    `json:"title"`
	Slug        string    `json:"slug"`
	URL         string    `json:"url"`
	Description string    `json:"description"`
	Author      string    `json:"author"`
	Category    string    `json:"category"`
	Tags        []string  `json:"tags"`
	Thumbnail   string    `json:"thumbnail"`
	Contents    string    `json:"contents,omitempty"`
	LastUpdate  time.Time `json:"last_update"`
}

// Render はrender.Rendererを実装する。
func (a *ArticleResponse) Render(w http.ResponseWriter, r *http.Request) error {
	return nil
}

func (h *APIHandler) newArticleResponse(a *model.Article, withContents bool) *ArticleResponse {
	resp := &ArticleResponse{
		Title:       a.Title,
		Slug:        a.Slug,
		URL:         h.baseURL + "/category/" + a.Category + "/" + a.Slug,
		Description: a.Description,
		Author:      a.Author,
		Category:    a.Category,
		Tags:        a.Tags,
		Thumbnail:   a.Thumbnail,
		LastUpdate:  a.LastUpdate,
	}
	if resp.Tags == nil {
		resp.Tags = []string{}
	}
	if withContents {
		resp.Contents = a.Contents
	}
	return resp
}

// ListArticles は公開済み記事の一覧を返す。一覧では本文を省略する。
// GET /api/articles
func (h *APIHandler) ListArticles(w http.ResponseWriter, r *http.Request) {
	articles, err := h.articles.ListReleased(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "公開記事一覧の取得に失敗しました", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w, r)
		return
	}

	list := make([]render.Renderer, 0, len(articles))
	for _, a := range articles {
		list = append(list, h.newArticleResponse(a, false))
	}
	if err := render.RenderList(w, r, list); err != nil {
		h.logger.ErrorContext(r.Context(), "レスポンスの書き込みに失敗しました", slog.String("error", err.Error()))
	}
}

// GetArticle は公開済み記事を1件返す。下書きは404とする。
// GET /api/articles/{slug}
func (h *APIHandler) GetArticle(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	article, err := h.articles.GetReleased(r.Context(), slug)
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) {
			middleware.WriteErrorResponse(w, r, middleware.StatusForCode(apiErr.Code), apiErr)
			return
		}
		h.logger.ErrorContext(r.Context(), "記事の取得に失敗しました",
			slog.String("slug", slug),
			slog.String("error", err.Error()),
		)
		middleware.WriteInternalServerError(w, r)
		return
	}

	if err := render.Render(w, r, h.newArticleResponse(article, true)); err != nil {
		h.logger.ErrorContext(r.Context(), "レスポンスの書き込みに失敗しました", slog.String("error", err.Error()))
	}
}
