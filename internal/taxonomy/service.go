// Package taxonomy はカテゴリとタグの管理ロジックを提供する。
package taxonomy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"

	"github.com/hitoshi/blogman/internal/model"
	"github.com/hitoshi/blogman/internal/repository"
)

// Service はカテゴリ・タグ管理のサービス層。
// カテゴリを削除しても記事側の参照は変更しない。
type Service struct {
	categories repository.CategoryRepository
	tags       repository.TagRepository
	logger     *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(categories repository.CategoryRepository, tags repository.TagRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{categories: categories, tags: tags, logger: logger}
}

// ListCategories は全カテゴリを返す。
func (s *Service) ListCategories(ctx context.Context) ([]*model.Category, error) {
	categories, err := s.categories.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("カテゴリ一覧の取得に失敗しました: %w", err)
	}
	return categories, nil
}

// CreateCategory はカテゴリを追加する。slugが既存カテゴリと重複する場合はSLUG_CONFLICTを返す。
func (s *Service) CreateCategory(ctx context.Context, name, slug string) (*model.Category, error) {
	name = strings.TrimSpace(name)
	slug = model.Slugify(slug)
	if name == "" || slug == "" {
		return nil, model.NewInvalidInputError("カテゴリ名とslugを入力してください")
	}

	slugs, err := s.categories.ListSlugs(ctx)
	if err != nil {
		return nil, fmt.Errorf("カテゴリslug一覧の取得に失敗しました: %w", err)
	}
	if slices.Contains(slugs, slug) {
		return nil, model.NewSlugConflictError(slug)
	}

	category := &model.Category{Name: name, Slug: slug}
	if err := s.categories.Create(ctx, category); err != nil {
		if errors.Is(err, repository.ErrDuplicateSlug) {
			return nil, model.NewSlugConflictError(slug)
		}
		return nil, fmt.Errorf("カテゴリの作成に失敗しました: %w", err)
	}

	s.logger.InfoContext(ctx, "カテゴリを追加しました", slog.String("slug", slug))
	return category, nil
}

// UpdateCategory はカテゴリのname/slugを更新する。nilのフィールドは変更しない。
func (s *Service) UpdateCategory(ctx context.Context, slug string, update model.CategoryUpdate) error {
	update = normalizeUpdate(update)
	if update.Name == nil && update.Slug == nil {
		return nil
	}
	if update.Slug != nil && *update.Slug == slug {
		update.Slug = nil
		if update.Name == nil {
			return nil
		}
	}

	if err := s.categories.UpdateBySlug(ctx, slug, update); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return model.NewCategoryNotFoundError(slug)
		case errors.Is(err, repository.ErrDuplicateSlug) && update.Slug != nil:
			return model.NewSlugConflictError(*update.Slug)
		}
		return fmt.Errorf("カテゴリの更新に失敗しました: %w", err)
	}
	return nil
}

// BulkUpdate は管理画面の一括更新フォームの内容を反映する。
// キーは更新前のslug。処理は元のslugの昇順で行い、最初のエラーで中断する。
func (s *Service) BulkUpdate(ctx context.Context, updates map[string]model.CategoryUpdate) error {
	keys := make([]string, 0, len(updates))
	for slug := range updates {
		keys = append(keys, slug)
	}
	sort.Strings(keys)

	for _, slug := range keys {
		if err := s.UpdateCategory(ctx, slug, updates[slug]); err != nil {
			return err
		}
	}
	return nil
}

// DeleteCategory はカテゴリを削除する。記事のcategoryはそのまま残る。
func (s *Service) DeleteCategory(ctx context.Context, slug string) error {
	if err := s.categories.DeleteBySlug(ctx, slug); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewCategoryNotFoundError(slug)
		}
		return fmt.Errorf("カテゴリの削除に失敗しました: %w", err)
	}
	s.logger.InfoContext(ctx, "カテゴリを削除しました", slog.String("slug", slug))
	return nil
}

// CategoryName はslugに対応するカテゴリ名を返す。カテゴリが存在しない場合はslugをそのまま返す。
func (s *Service) CategoryName(ctx context.Context, slug string) (string, error) {
	category, err := s.categories.FindBySlug(ctx, slug)
	if err != nil {
		return "", fmt.Errorf("カテゴリの取得に失敗しました: %w", err)
	}
	if category == nil {
		return slug, nil
	}
	return category.Name, nil
}

// CategoryNames はslugからカテゴリ名への対応表を返す。
func (s *Service) CategoryNames(ctx context.Context) (map[string]string, error) {
	categories, err := s.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(categories))
	for _, c := range categories {
		names[c.Slug] = c.Name
	}
	return names, nil
}

// ListTags は全タグを返す。
func (s *Service) ListTags(ctx context.Context) ([]*model.Tag, error) {
	tags, err := s.tags.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("タグ一覧の取得に失敗しました: %w", err)
	}
	return tags, nil
}

// CreateTag はタグを追加する。
// slugの重複確認はカテゴリのslugに対して行う。タグ同士のslug重複は許容される。
func (s *Service) CreateTag(ctx context.Context, name, slug string) (*model.Tag, error) {
	name = strings.TrimSpace(name)
	slug = model.Slugify(slug)
	if name == "" || slug == "" {
		return nil, model.NewInvalidInputError("タグ名とslugを入力してください")
	}

	categorySlugs, err := s.categories.ListSlugs(ctx)
	if err != nil {
		return nil, fmt.Errorf("カテゴリslug一覧の取得に失敗しました: %w", err)
	}
	if slices.Contains(categorySlugs, slug) {
		return nil, model.NewSlugConflictError(slug)
	}

	tag := &model.Tag{Name: name, Slug: slug}
	if err := s.tags.Create(ctx, tag); err != nil {
		return nil, fmt.Errorf("タグの作成に失敗しました: %w", err)
	}

	s.logger.InfoContext(ctx, "タグを追加しました", slog.String("slug", slug))
	return tag, nil
}

// DeleteTag はタグを削除する。
func (s *Service) DeleteTag(ctx context.Context, slug string) error {
	if err := s.tags.DeleteBySlug(ctx, slug); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewTagNotFoundError(slug)
		}
		return fmt.Errorf("タグの削除に失敗しました: %w", err)
	}
	s.logger.InfoContext(ctx, "タグを削除しました", slog.String("slug", slug))
	return nil
}

// normalizeUpdate は空文字列を未指定として扱い、slugを正規化する。
func normalizeUpdate(update model.CategoryUpdate) model.CategoryUpdate {
	var out model.CategoryUpdate
	if update.Name != nil {
		if name := strings.TrimSpace(*update.Name); name != "" {
			out.Name = &name
		}
	}
	if update.Slug != nil {
		if slug := model.Slugify(*update.Slug); slug != "" {
			out.Slug = &slug
		}
	}
	return out
}
