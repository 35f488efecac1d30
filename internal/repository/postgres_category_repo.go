package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/hitoshi/blogman/internal/model"
)

// PostgresCategoryRepo はPostgreSQLを使用したカテゴリリポジトリ。
type PostgresCategoryRepo struct {
	db *sql.DB
}

// NewPostgresCategoryRepo はPostgresCategoryRepoを生成する。
func NewPostgresCategoryRepo(db *sql.DB) *PostgresCategoryRepo {
	return &PostgresCategoryRepo{db: db}
}

// List は全カテゴリを作成順に返す。
func (r *PostgresCategoryRepo) List(ctx context.Context) ([]*model.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, slug FROM categories ORDER BY created_at, slug`,
	)
	if err != nil {
		return nil, fmt.Errorf("カテゴリ一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	categories := make([]*model.Category, 0)
	for rows.Next() {
		c := &model.Category{}
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug); err != nil {
			return nil, fmt.Errorf("カテゴリのスキャンに失敗しました: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("カテゴリ一覧の読み取りに失敗しました: %w", err)
	}
	return categories, nil
}

// FindBySlug はslugに一致するカテゴリを取得する。見つからない場合はnilを返す。
func (r *PostgresCategoryRepo) FindBySlug(ctx context.Context, slug string) (*model.Category, error) {
	c := &model.Category{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, slug FROM categories WHERE slug = $1 LIMIT 1`,
		slug,
	).Scan(&c.ID, &c.Name, &c.Slug)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("カテゴリの取得に失敗しました: %w", err)
	}
	return c, nil
}

// Create はカテゴリを作成する。
func (r *PostgresCategoryRepo) Create(ctx context.Context, category *model.Category) error {
	if category.ID == "" {
		category.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (id, name, slug) VALUES ($1, $2, $3)`,
		category.ID, category.Name, category.Slug,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("カテゴリの作成に失敗しました: %w", ErrDuplicateSlug)
		}
		return fmt.Errorf("カテゴリの作成に失敗しました: %w", err)
	}
	return nil
}

// UpdateBySlug はnilでないフィールドのみを更新する。
func (r *PostgresCategoryRepo) UpdateBySlug(ctx context.Context, slug string, update model.CategoryUpdate) error {
	sets := make([]string, 0, 2)
	args := []any{slug}
	if update.Name != nil {
		args = append(args, *update.Name)
		sets = append(sets, fmt.Sprintf("name = $%d", len(args)))
	}
	if update.Slug != nil {
		args = append(args, *update.Slug)
		sets = append(sets, fmt.Sprintf("slug = $%d", len(args)))
	}
	if len(sets) == 0 {
		return nil
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE categories SET `+strings.Join(sets, ", ")+` WHERE slug = $1`,
		args...,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("カテゴリの更新に失敗しました: %w", ErrDuplicateSlug)
		}
		return fmt.Errorf("カテゴリの更新に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新結果の取得に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("カテゴリが見つかりません: %s: %w", slug, ErrNotFound)
	}
	return nil
}

// DeleteBySlug はカテゴリを削除する。
func (r *PostgresCategoryRepo) DeleteBySlug(ctx context.Context, slug string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE slug = $1`, slug)
	if err != nil {
		return fmt.Errorf("カテゴリの削除に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("削除結果の取得に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("カテゴリが見つかりません: %s: %w", slug, ErrNotFound)
	}
	return nil
}

// ListSlugs は全カテゴリのslugを返す。
func (r *PostgresCategoryRepo) ListSlugs(ctx context.Context) ([]string, error) {
	return querySlugs(ctx, r.db, `SELECT slug FROM categories ORDER BY created_at, slug`)
}

var _ CategoryRepository = (*PostgresCategoryRepo)(nil)
