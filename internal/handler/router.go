package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/blogman/internal/auth"
	"github.com/hitoshi/blogman/internal/media"
	"github.com/hitoshi/blogman/internal/middleware"
	"github.com/hitoshi/blogman/internal/view"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger   *slog.Logger
	Pages    PageRenderer
	SiteName string
	BaseURL  string

	// ミドルウェア依存
	SessionVerifier   middleware.SessionVerifier
	LoginLimiter      *middleware.RateLimiter
	APILimiter        *middleware.RateLimiter
	StatusRecorder    middleware.StatusRecorder
	CORSAllowedOrigin string
	CookieSecure      bool
	MaxBodyBytes      int64

	// 記事・分類
	ArticleService  ArticleService
	TaxonomyService TaxonomyService
	Markdown        MarkdownRenderer
	WhatsNewCount   int

	// 管理者
	AuthService    AuthService
	ProfileService ProfileService

	// メディア
	MediaStore MediaStore
	MediaDir   string

	// サイトマップ・RSS・ヘルスチェック
	Sitemap SitemapSource
	Feed    FeedSource
	DB      Pinger

	// MetricsHandler が設定されている場合のみ /metrics を公開する。
	MetricsHandler http.Handler
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → RealIP → Logging → Recovery → SecurityHeaders → BodyLimit → CSRF
//
// /admin 配下はPOST /admin（ログイン）を除き認証ミドルウェアを通す。
// /api 配下はCSRFの対象外とし、CORSとレート制限を適用する。
func NewRouter(deps *RouterDeps) chi.Router {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	publicHandler := NewPublicHandler(deps.ArticleService, deps.TaxonomyService, deps.Markdown, deps.Pages, deps.SiteName, deps.WhatsNewCount, logger)
	authHandler := NewAuthHandler(deps.AuthService, deps.Pages, deps.SiteName, deps.CookieSecure, logger)
	adminHandler := NewAdminHandler(deps.ArticleService, deps.TaxonomyService, deps.Markdown, deps.Pages, deps.SiteName, deps.WhatsNewCount, logger)
	taxonomyHandler := NewTaxonomyHandler(deps.TaxonomyService, deps.Pages, deps.SiteName, logger)
	mediaHandler := NewMediaHandler(deps.MediaStore, deps.Pages, deps.SiteName, logger)
	profileHandler := NewProfileHandler(deps.ProfileService, deps.Pages, deps.SiteName, sessionTTL(deps.AuthService), deps.CookieSecure, logger)
	apiHandler := NewAPIHandler(deps.ArticleService, strings.TrimRight(deps.BaseURL, "/"), logger)
	siteHandler := NewSiteHandler(deps.Sitemap, deps.Feed, deps.DB, logger)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.NewLoggingMiddleware(logger, deps.StatusRecorder))
	r.Use(middleware.NewRecoveryMiddleware(logger, func(w http.ResponseWriter, r *http.Request) {
		publicHandler.view.Render(w, http.StatusInternalServerError, view.PageError, publicHandler.page(r, "エラーが発生しました"))
	}))
	r.Use(middleware.NewSecurityHeadersMiddleware(deps.CookieSecure))
	if deps.MaxBodyBytes > 0 {
		r.Use(middleware.NewBodyLimitMiddleware(deps.MaxBodyBytes))
	}

	r.NotFound(publicHandler.NotFound)

	// --- JSON・機械向けのルート（CSRF対象外） ---
	r.Get("/health", siteHandler.Health)
	r.Get("/sitemap.xml", siteHandler.Sitemap)
	r.Get("/feed.xml", siteHandler.Feed)
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
		if deps.APILimiter != nil {
			r.Use(deps.APILimiter.Middleware(deps.APILimiter.JSONLimited()))
		}
		r.Get("/articles", apiHandler.ListArticles)
		r.Get("/articles/{slug}", apiHandler.GetArticle)
	})
	if deps.MediaDir != "" {
		r.Handle(media.PublicPrefix+"*", http.StripPrefix(media.PublicPrefix, noDirListing(http.FileServer(http.Dir(deps.MediaDir)))))
	}

	// --- HTMLページ ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewCSRFMiddleware(middleware.CSRFConfig{
			CookieSecure:    deps.CookieSecure,
			MultipartMemory: multipartMemory,
		}))

		r.Get("/", publicHandler.Index)
		r.Get("/category/{category}", publicHandler.Category)
		r.Get("/category/{category}/{slug}", publicHandler.Single)

		// ログインフォームは /admin と /login のどちらにもPOSTできる
		login := http.Handler(http.HandlerFunc(authHandler.Login))
		if deps.LoginLimiter != nil {
			login = deps.LoginLimiter.Middleware(middleware.RedirectLimited(auth.ErrCodeTooManyAttempts))(login)
		}

		r.Get(middleware.LoginPath, authHandler.LoginPage)
		r.Method(http.MethodPost, middleware.LoginPath, login)
		r.Get("/logout", authHandler.Logout)

		requireAdmin := middleware.NewAdminAuthMiddleware(deps.SessionVerifier, logger)

		r.Route(adminPath, func(r chi.Router) {
			r.With(requireAdmin).Get("/", adminHandler.Dashboard)
			r.Method(http.MethodPost, "/", login)

			r.Group(func(r chi.Router) {
				r.Use(requireAdmin)

				r.Get("/new", adminHandler.New)
				r.Post("/add", adminHandler.Add)
				r.Get("/edit/{slug}", adminHandler.Edit)
				r.Post("/article/update", adminHandler.Update)
				r.Get("/article/delete", adminHandler.Delete)

				r.Get("/media", mediaHandler.Page)
				r.Post("/upload", mediaHandler.Upload)

				r.Get("/profile", profileHandler.Page)
				r.Post("/profile/update", profileHandler.Update)

				r.Get("/category", taxonomyHandler.Categories)
				r.Post("/category/add", taxonomyHandler.AddCategory)
				r.Post("/category/update", taxonomyHandler.UpdateCategories)
				r.Get("/category/delete", taxonomyHandler.DeleteCategory)

				r.Get("/tag", taxonomyHandler.Tags)
				r.Post("/tag/add", taxonomyHandler.AddTag)
				r.Get("/tag/delete", taxonomyHandler.DeleteTag)
			})
		})
	})

	return r
}

// noDirListing はディレクトリ一覧の表示を404にする。
func noDirListing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func sessionTTL(s AuthService) time.Duration {
	if s == nil {
		return 0
	}
	return s.SessionTTL()
}
