package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/docgen"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/blogman/internal/auth"
	"github.com/hitoshi/blogman/internal/config"
	"github.com/hitoshi/blogman/internal/handler"
	"github.com/hitoshi/blogman/internal/metrics"
	"github.com/hitoshi/blogman/internal/model"
)

// signupPasswordEnv は signup サブコマンドが読むパスワードの環境変数名。
// パスワードはフラグでは受け付けない。
const signupPasswordEnv = "BLOGMAN_SIGNUP_PASSWORD"

type seedEntry struct {
	name string
	slug string
}

var (
	seedCategories = []seedEntry{
		{name: "お知らせ", slug: "news"},
		{name: "技術", slug: "tech"},
	}
	seedTags = []seedEntry{
		{name: "Go", slug: "go"},
		{name: "ブログ", slug: "blog"},
	}
	seedArticle = model.ArticleInput{
		Title:       "ようこそ",
		Slug:        "welcome",
		Author:      "blogman",
		Category:    "news",
		Tags:        []string{"blog"},
		Contents:    "# ようこそ\n\nblogmanで最初の記事です。管理画面から編集・削除できます。",
		Description: "blogmanのサンプル記事",
		Released:    true,
	}
)

// runSeed はサンプルのカテゴリ・タグ・記事を投入する。
// 既に存在するslugはスキップするため、繰り返し実行できる。
func runSeed(ctx context.Context, cfg *config.Config) error {
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	content := newContentServices(db, cfg, metrics.NewCollector(prometheus.NewRegistry()), slog.Default())

	if err := seedTaxonomy(ctx, content.taxonomy); err != nil {
		return err
	}
	if _, err := content.articles.Create(ctx, seedArticle); err != nil && !isSlugConflict(err) {
		return fmt.Errorf("seed article failed: %w", err)
	}

	slog.Info("seed completed",
		slog.Int("categories", len(seedCategories)),
		slog.Int("tags", len(seedTags)),
	)
	return nil
}

// taxonomySeeder はseedが使う分類サービスの操作。
type taxonomySeeder interface {
	CreateCategory(ctx context.Context, name, slug string) (*model.Category, error)
	ListTags(ctx context.Context) ([]*model.Tag, error)
	CreateTag(ctx context.Context, name, slug string) (*model.Tag, error)
}

// seedTaxonomy はサンプルのカテゴリとタグを投入する。
// タグslugは重複を許すため、既存のslugは事前に除外する。
func seedTaxonomy(ctx context.Context, svc taxonomySeeder) error {
	for _, c := range seedCategories {
		if _, err := svc.CreateCategory(ctx, c.name, c.slug); err != nil && !isSlugConflict(err) {
			return fmt.Errorf("seed category %q failed: %w", c.slug, err)
		}
	}

	existing, err := svc.ListTags(ctx)
	if err != nil {
		return fmt.Errorf("seed tags failed: %w", err)
	}
	seen := make(map[string]bool, len(existing))
	for _, t := range existing {
		seen[t.Slug] = true
	}
	for _, t := range seedTags {
		if seen[t.slug] {
			continue
		}
		if _, err := svc.CreateTag(ctx, t.name, t.slug); err != nil && !isSlugConflict(err) {
			return fmt.Errorf("seed tag %q failed: %w", t.slug, err)
		}
		seen[t.slug] = true
	}
	return nil
}

// runSignup はIdPに管理者アカウントを作成する。
// メールアドレスと表示名はフラグ、パスワードは環境変数から受け取る。
func runSignup(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet(string(CommandSignup), flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	email := fs.String("email", "", "管理者のメールアドレス")
	name := fs.String("name", "", "管理者の表示名")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("invalid signup arguments: %w", err)
	}

	password := os.Getenv(signupPasswordEnv)
	if *email == "" || password == "" {
		return fmt.Errorf("signup requires -email and %s", signupPasswordEnv)
	}

	service, err := newAuthService(ctx, cfg, nil, slog.Default())
	if err != nil {
		return err
	}

	created, err := service.Signup(ctx, *email, password, *name)
	if err != nil {
		if code := auth.ProviderErrorCode(err); code != "" {
			return fmt.Errorf("signup failed: %s (%s)", auth.ErrorMessage(code), code)
		}
		return fmt.Errorf("signup failed: %w", err)
	}

	slog.Info("admin user created",
		slog.String("local_id", created.LocalID),
		slog.String("display_name", created.DisplayName),
	)
	return nil
}

// runRoutes はルーティング一覧をMarkdownでwに出力する。
// ハンドラーは呼び出されないため、依存関係は空のままでよい。
func runRoutes(w io.Writer) error {
	if w == nil {
		w = os.Stdout
	}
	router := handler.NewRouter(&handler.RouterDeps{
		Logger:         slog.New(slog.NewJSONHandler(io.Discard, nil)),
		MediaDir:       os.TempDir(),
		MetricsHandler: http.NotFoundHandler(),
	})

	_, err := fmt.Fprintln(w, docgen.MarkdownRoutesDoc(router, docgen.MarkdownOpts{
		ProjectPath: "github.com/hitoshi/blogman",
		Intro:       "blogman のHTTPルーティング一覧。",
	}))
	return err
}

func isSlugConflict(err error) bool {
	var apiErr *model.APIError
	return errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeSlugConflict
}
