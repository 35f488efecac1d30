package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/hitoshi/blogman/internal/model"
)

// PostgresTagRepo はPostgreSQLを使用したタグリポジトリ。
type PostgresTagRepo struct {
	db *sql.DB
}

// NewPostgresTagRepo はPostgresTagRepoを生成する。
func NewPostgresTagRepo(db *sql.DB) *PostgresTagRepo {
	return &PostgresTagRepo{db: db}
}

// List は全タグを作成順に返す。
func (r *PostgresTagRepo) List(ctx context.Context) ([]*model.Tag, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, slug FROM tags ORDER BY created_at, slug`,
	)
	if err != nil {
		return nil, fmt.Errorf("タグ一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	tags := make([]*model.Tag, 0)
	for rows.Next() {
		tag := &model.Tag{}
		if err := rows.Scan(&tag.ID, &tag.Name, &tag.Slug); err != nil {
			return nil, fmt.Errorf("タグのスキャンに失敗しました: %w", err)
		}
		tags = append(tags, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("タグ一覧の読み取りに失敗しました: %w", err)
	}
	return tags, nil
}

// Create はタグを作成する。
func (r *PostgresTagRepo) Create(ctx context.Context, tag *model.Tag) error {
	if tag.ID == "" {
		tag.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tags (id, name, slug) VALUES ($1, $2, $3)`,
		tag.ID, tag.Name, tag.Slug,
	)
	if err != nil {
		return fmt.Errorf("タグの作成に失敗しました: %w", err)
	}
	return nil
}

// DeleteBySlug はslugに一致するタグを削除する。同一slugのタグが複数ある場合はすべて削除する。
func (r *PostgresTagRepo) DeleteBySlug(ctx context.Context, slug string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM tags WHERE slug = $1`, slug)
	if err != nil {
		return fmt.Errorf("タグの削除に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("削除結果の取得に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("タグが見つかりません: %s: %w", slug, ErrNotFound)
	}
	return nil
}

// ListSlugs は全タグのslugを返す。
func (r *PostgresTagRepo) ListSlugs(ctx context.Context) ([]string, error) {
	return querySlugs(ctx, r.db, `SELECT slug FROM tags ORDER BY created_at, slug`)
}

var _ TagRepository = (*PostgresTagRepo)(nil)
