// Package article は記事の作成・公開・更新・削除のドメインロジックを提供する。
package article

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hitoshi/blogman/internal/model"
	"github.com/hitoshi/blogman/internal/repository"
)

var tracer = otel.Tracer("blogman/article")

const (
	// DefaultWhatsNewCount は新着記事の既定件数。
	DefaultWhatsNewCount = 5
	// excerptLength は説明文が空の場合に本文から生成する抜粋の文字数。
	excerptLength = 120
)

// SitemapRegenerator はサイトマップ再生成のインターフェース。
type SitemapRegenerator interface {
	Regenerate(ctx context.Context) error
}

// Excerpter はマークダウン本文から抜粋を生成するインターフェース。
type Excerpter interface {
	Excerpt(source string, limit int) string
}

// MetricsRecorder は記事操作のメトリクスを記録するインターフェース。
type MetricsRecorder interface {
	RecordArticlePublished()
	RecordArticleDeleted()
}

// Service は記事管理のサービス層。
// 公開・削除の後にはサイトマップを同期的に再生成する。
type Service struct {
	repo      repository.ArticleRepository
	sitemap   SitemapRegenerator
	excerpter Excerpter
	metrics   MetricsRecorder
	logger    *slog.Logger
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
// sitemap、excerpter、metricsはnilでもよい。
func NewService(
	repo repository.ArticleRepository,
	sitemap SitemapRegenerator,
	excerpter Excerpter,
	metrics MetricsRecorder,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		sitemap:   sitemap,
		excerpter: excerpter,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
}

// Create は新規記事を保存する。
// slugは正規化され、既存記事と重複する場合は書き込み前にSLUG_CONFLICTを返す。
func (s *Service) Create(ctx context.Context, input model.ArticleInput) (*model.Article, error) {
	ctx, span := tracer.Start(ctx, "ArticleService.Create", trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()

	slug := model.Slugify(input.Slug)
	if slug == "" {
		slug = model.Slugify(input.Title)
	}
	span.SetAttributes(
		attribute.String("article.slug", slug),
		attribute.Bool("article.released", input.Released),
	)
	if slug == "" {
		return nil, recordSpanError(span, model.NewInvalidInputError("タイトルまたはslugを入力してください"))
	}

	existing, err := s.repo.FindBySlug(ctx, slug)
	if err != nil {
		return nil, recordSpanError(span, fmt.Errorf("slugの重複確認に失敗しました: %w", err))
	}
	if existing != nil {
		return nil, recordSpanError(span, model.NewSlugConflictError(slug))
	}

	article := &model.Article{
		Title:       input.Title,
		Thumbnail:   input.Thumbnail,
		Contents:    input.Contents,
		Description: s.describe(input.Description, input.Contents),
		Author:      input.Author,
		Slug:        slug,
		Category:    input.Category,
		Tags:        input.Tags,
		LastUpdate:  s.now(),
		Released:    input.Released,
	}
	if article.Tags == nil {
		article.Tags = []string{}
	}

	if err := s.repo.Create(ctx, article); err != nil {
		if errors.Is(err, repository.ErrDuplicateSlug) {
			return nil, recordSpanError(span, model.NewSlugConflictError(slug))
		}
		return nil, recordSpanError(span, fmt.Errorf("記事の保存に失敗しました: %w", err))
	}

	s.logger.InfoContext(ctx, "記事を保存しました",
		slog.String("slug", article.Slug),
		slog.Bool("released", article.Released),
	)

	if article.Released {
		if s.metrics != nil {
			s.metrics.RecordArticlePublished()
		}
		s.regenerateSitemap(ctx)
	}

	return article, nil
}

// Get はslugに一致する記事を公開状態に関わらず返す。
func (s *Service) Get(ctx context.Context, slug string) (*model.Article, error) {
	article, err := s.repo.FindBySlug(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("記事の取得に失敗しました: %w", err)
	}
	if article == nil {
		return nil, model.NewArticleNotFoundError(slug)
	}
	return article, nil
}

// GetReleased は公開済みの記事のみを返す。下書きは見つからない扱いとする。
func (s *Service) GetReleased(ctx context.Context, slug string) (*model.Article, error) {
	article, err := s.Get(ctx, slug)
	if err != nil {
		return nil, err
	}
	if !article.Released {
		return nil, model.NewArticleNotFoundError(slug)
	}
	return article, nil
}

// ListReleased は公開済み記事をlast_update降順で返す。
func (s *Service) ListReleased(ctx context.Context) ([]*model.Article, error) {
	articles, err := s.repo.List(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("公開記事一覧の取得に失敗しました: %w", err)
	}
	return articles, nil
}

// ListAll は下書きを含む全記事を返す。
func (s *Service) ListAll(ctx context.Context) ([]*model.Article, error) {
	articles, err := s.repo.List(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("記事一覧の取得に失敗しました: %w", err)
	}
	return articles, nil
}

// ListByCategory は指定カテゴリの公開記事を返す。
func (s *Service) ListByCategory(ctx context.Context, category string) ([]*model.Article, error) {
	articles, err := s.repo.ListByCategory(ctx, category)
	if err != nil {
		return nil, fmt.Errorf("カテゴリ別記事一覧の取得に失敗しました: %w", err)
	}
	return articles, nil
}

// WhatsNew は最新の公開記事を最大n件返す。nが0以下の場合は既定件数を使う。
func (s *Service) WhatsNew(ctx context.Context, n int) ([]*model.Article, error) {
	if n <= 0 {
		n = DefaultWhatsNewCount
	}
	articles, err := s.repo.ListWhatsNew(ctx, n)
	if err != nil {
		return nil, fmt.Errorf("新着記事の取得に失敗しました: %w", err)
	}
	return articles, nil
}

// Update はoriginalSlugの記事を上書き更新する。
// 作者は変更しない。slugを他の記事と重複する値に変更しようとした場合はSLUG_CONFLICTを返す。
func (s *Service) Update(ctx context.Context, originalSlug string, update model.ArticleUpdate) (*model.Article, error) {
	ctx, span := tracer.Start(ctx, "ArticleService.Update", trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()
	span.SetAttributes(attribute.String("article.original_slug", originalSlug))

	current, err := s.repo.FindBySlug(ctx, originalSlug)
	if err != nil {
		return nil, recordSpanError(span, fmt.Errorf("記事の取得に失敗しました: %w", err))
	}
	if current == nil {
		return nil, recordSpanError(span, model.NewArticleNotFoundError(originalSlug))
	}

	slug := model.Slugify(update.Slug)
	if slug == "" {
		slug = originalSlug
	}
	span.SetAttributes(
		attribute.String("article.slug", slug),
		attribute.Bool("article.released", update.Released),
	)

	if slug != originalSlug {
		other, err := s.repo.FindBySlug(ctx, slug)
		if err != nil {
			return nil, recordSpanError(span, fmt.Errorf("slugの重複確認に失敗しました: %w", err))
		}
		if other != nil {
			return nil, recordSpanError(span, model.NewSlugConflictError(slug))
		}
	}

	article := &model.Article{
		ID:          current.ID,
		Title:       update.Title,
		Thumbnail:   update.Thumbnail,
		Contents:    update.Contents,
		Description: s.describe(update.Description, update.Contents),
		Author:      current.Author,
		Slug:        slug,
		Category:    update.Category,
		Tags:        update.Tags,
		LastUpdate:  s.now(),
		Released:    update.Released,
	}
	if article.Tags == nil {
		article.Tags = []string{}
	}

	if err := s.repo.UpdateBySlug(ctx, originalSlug, article); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, recordSpanError(span, model.NewArticleNotFoundError(originalSlug))
		case errors.Is(err, repository.ErrDuplicateSlug):
			return nil, recordSpanError(span, model.NewSlugConflictError(slug))
		}
		return nil, recordSpanError(span, fmt.Errorf("記事の更新に失敗しました: %w", err))
	}

	s.logger.InfoContext(ctx, "記事を更新しました",
		slog.String("original_slug", originalSlug),
		slog.String("slug", article.Slug),
		slog.Bool("released", article.Released),
	)

	if article.Released && s.metrics != nil {
		s.metrics.RecordArticlePublished()
	}
	// 非公開化した場合もサイトマップから除外する必要がある
	if article.Released || current.Released {
		s.regenerateSitemap(ctx)
	}

	return article, nil
}

// Delete はslugに一致する記事を削除し、サイトマップを再生成する。
func (s *Service) Delete(ctx context.Context, slug string) error {
	ctx, span := tracer.Start(ctx, "ArticleService.Delete", trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()
	span.SetAttributes(attribute.String("article.slug", slug))

	if err := s.repo.DeleteBySlug(ctx, slug); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return recordSpanError(span, model.NewArticleNotFoundError(slug))
		}
		return recordSpanError(span, fmt.Errorf("記事の削除に失敗しました: %w", err))
	}

	s.logger.InfoContext(ctx, "記事を削除しました", slog.String("slug", slug))

	if s.metrics != nil {
		s.metrics.RecordArticleDeleted()
	}
	s.regenerateSitemap(ctx)
	return nil
}

// describe は説明文が空の場合に本文から抜粋を生成する。
func (s *Service) describe(description, contents string) string {
	if description != "" || s.excerpter == nil {
		return description
	}
	return s.excerpter.Excerpt(contents, excerptLength)
}

// regenerateSitemap はサイトマップを再生成する。失敗はログに記録し、呼び出し元には返さない。
func (s *Service) regenerateSitemap(ctx context.Context) {
	if s.sitemap == nil {
		return
	}
	if err := s.sitemap.Regenerate(ctx); err != nil {
		s.logger.ErrorContext(ctx, "サイトマップの再生成に失敗しました",
			slog.String("error", err.Error()),
		)
	}
}

func recordSpanError(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
