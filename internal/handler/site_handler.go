package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"github.com/hitoshi/blogman/internal/feed"
)

const healthCheckTimeout = 3 * time.Second

// SitemapSource はsitemap.xmlの内容を返す。ファイルがなければ生成する。
type SitemapSource interface {
	ReadFile(ctx context.Context) ([]byte, error)
}

// FeedSource はRSSフィードを生成する。
type FeedSource interface {
	Render(ctx context.Context) ([]byte, error)
}

// Pinger はデータベースの疎通確認を行う。*sql.DBが実装する。
type Pinger interface {
	PingContext(ctx context.Context) error
}

// SiteHandler はサイトマップ・RSS・ヘルスチェックのハンドラー。
type SiteHandler struct {
	sitemap SitemapSource
	feed    FeedSource
	db      Pinger
	logger  *slog.Logger
}

// NewSiteHandler はSiteHandlerを生成する。dbがnilの場合ヘルスチェックはDBを確認しない。
func NewSiteHandler(sitemap SitemapSource, feed FeedSource, db Pinger, logger *slog.Logger) *SiteHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SiteHandler{sitemap: sitemap, feed: feed, db: db, logger: logger}
}

// Sitemap はsitemap.xmlを返す。
// GET /sitemap.xml
func (h *SiteHandler) Sitemap(w http.ResponseWriter, r *http.Request) {
	data, err := h.sitemap.ReadFile(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "サイトマップの読み込みに失敗しました", slog.String("error", err.Error()))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.Write(data)
}

// Feed は新着記事のRSSを返す。
// GET /feed.xml
func (h *SiteHandler) Feed(w http.ResponseWriter, r *http.Request) {
	data, err := h.feed.Render(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "RSSの生成に失敗しました", slog.String("error", err.Error()))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", feed.ContentType)
	w.Write(data)
}

// Health はプロセスとデータベースの状態を返す。
// GET /health
func (h *SiteHandler) Health(w http.ResponseWriter, r *http.Request) {
	status := render.M{"status": "ok"}
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			h.logger.WarnContext(r.Context(), "ヘルスチェックでDB接続に失敗しました", slog.String("error", err.Error()))
			render.Status(r, http.StatusServiceUnavailable)
			render.JSON(w, r, render.M{"status": "unavailable", "database": "down"})
			return
		}
		status["database"] = "up"
	}
	render.JSON(w, r, status)
}
