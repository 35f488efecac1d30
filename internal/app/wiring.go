package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/hitoshi/blogman/internal/article"
	"github.com/hitoshi/blogman/internal/auth"
	"github.com/hitoshi/blogman/internal/config"
	"github.com/hitoshi/blogman/internal/database"
	"github.com/hitoshi/blogman/internal/markdown"
	"github.com/hitoshi/blogman/internal/metrics"
	"github.com/hitoshi/blogman/internal/repository"
	"github.com/hitoshi/blogman/internal/security"
	"github.com/hitoshi/blogman/internal/sitemap"
	"github.com/hitoshi/blogman/internal/taxonomy"
)

const dbPingTimeout = 5 * time.Second

// contentServices は記事・分類・サイトマップのサービス群。
// serve / worker / seed で共有する。
type contentServices struct {
	articles *article.Service
	taxonomy *taxonomy.Service
	sitemap  *sitemap.Generator
	markdown *markdown.Renderer
}

func openDatabase(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := database.Ping(ctx, db, dbPingTimeout); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

func newContentServices(db *sql.DB, cfg *config.Config, collector *metrics.Collector, logger *slog.Logger) *contentServices {
	articleRepo := repository.NewPostgresArticleRepo(db)
	renderer := markdown.NewRenderer(security.NewContentSanitizer())
	generator := sitemap.NewGenerator(articleRepo, cfg.BaseURL, cfg.SitemapPath, collector, logger)

	return &contentServices{
		articles: article.NewService(articleRepo, generator, renderer, collector, logger),
		taxonomy: taxonomy.NewService(
			repository.NewPostgresCategoryRepo(db),
			repository.NewPostgresTagRepo(db),
			logger,
		),
		sitemap:  generator,
		markdown: renderer,
	}
}

// newAuthService はIdPクライアントと認証サービスを構築する。
// GOOGLE_APPLICATION_CREDENTIALSが設定されていればサービスアカウントで管理APIを呼び出す。
func newAuthService(ctx context.Context, cfg *config.Config, recorder auth.MetricsRecorder, logger *slog.Logger) (*auth.Service, error) {
	var credentials []byte
	if cfg.GoogleCredentialsFile != "" {
		data, err := os.ReadFile(cfg.GoogleCredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read service account credentials: %w", err)
		}
		credentials = data
	} else {
		logger.Warn("service account credentials are not configured; login and profile will be unavailable")
	}

	idp, err := auth.NewIdentityClient(ctx, auth.IdentityConfig{
		APIKey:          cfg.FirebaseAPIKey,
		ProjectID:       cfg.FirebaseProjectID,
		CredentialsJSON: credentials,
		BaseURL:         cfg.IdentityBaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create identity client: %w", err)
	}

	return auth.NewService(idp, recorder, auth.ServiceConfig{SessionTTL: cfg.SessionTTL()}, logger), nil
}

func newSessionVerifier(cfg *config.Config) *auth.SessionVerifier {
	return auth.NewSessionVerifier(cfg.FirebaseProjectID, auth.NewHTTPKeySource("", nil))
}
