package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/hitoshi/blogman/internal/model"
)

// uniqueViolation はPostgreSQLの一意制約違反のSQLSTATE。
const uniqueViolation = "23505"

const articleColumns = `id, title, thumbnail, contents, description, author,
	slug, category, tags, released, last_update`

// PostgresArticleRepo はPostgreSQLを使用した記事リポジトリ。
type PostgresArticleRepo struct {
	db *sql.DB
}

// NewPostgresArticleRepo はPostgresArticleRepoを生成する。
func NewPostgresArticleRepo(db *sql.DB) *PostgresArticleRepo {
	return &PostgresArticleRepo{db: db}
}

// Create は記事を作成する。IDが空の場合はUUIDを採番し、last_updateがゼロ値なら現在時刻を設定する。
func (r *PostgresArticleRepo) Create(ctx context.Context, article *model.Article) error {
	if article.ID == "" {
		article.ID = uuid.New().String()
	}
	if article.LastUpdate.IsZero() {
		article.LastUpdate = time.Now()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO articles (`+articleColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		article.ID, article.Title, article.Thumbnail, article.Contents, article.Description,
		article.Author, article.Slug, article.Category, pq.Array(tagsOrEmpty(article.Tags)),
		article.Released, article.LastUpdate,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("記事の作成に失敗しました: %w", ErrDuplicateSlug)
		}
		return fmt.Errorf("記事の作成に失敗しました: %w", err)
	}
	return nil
}

// FindBySlug はslugに一致する記事を取得する。見つからない場合はnilを返す。
func (r *PostgresArticleRepo) FindBySlug(ctx context.Context, slug string) (*model.Article, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+articleColumns+` FROM articles WHERE slug = $1 LIMIT 1`,
		slug,
	)
	article, err := scanArticle(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("記事の取得に失敗しました: %w", err)
	}
	return article, nil
}

// UpdateBySlug はoriginalSlugの記事IDを読み直してから内容を上書きする。
// 読み直しと更新はトランザクションで囲まないため、間に削除された場合はErrNotFoundとなる。
func (r *PostgresArticleRepo) UpdateBySlug(ctx context.Context, originalSlug string, article *model.Article) error {
	id, err := r.findIDBySlug(ctx, originalSlug)
	if err != nil {
		return err
	}

	if article.LastUpdate.IsZero() {
		article.LastUpdate = time.Now()
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE articles SET
		    title = $2, thumbnail = $3, description = $4, slug = $5,
		    contents = $6, category = $7, tags = $8, released = $9, last_update = $10
		 WHERE id = $1`,
		id, article.Title, article.Thumbnail, article.Description, article.Slug,
		article.Contents, article.Category, pq.Array(tagsOrEmpty(article.Tags)),
		article.Released, article.LastUpdate,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("記事の更新に失敗しました: %w", ErrDuplicateSlug)
		}
		return fmt.Errorf("記事の更新に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新結果の取得に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("記事が見つかりません: %s: %w", originalSlug, ErrNotFound)
	}
	article.ID = id
	return nil
}

// DeleteBySlug はslugに一致する記事を削除する。
func (r *PostgresArticleRepo) DeleteBySlug(ctx context.Context, slug string) error {
	id, err := r.findIDBySlug(ctx, slug)
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx, `DELETE FROM articles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("記事の削除に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("削除結果の取得に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("記事が見つかりません: %s: %w", slug, ErrNotFound)
	}
	return nil
}

// List はlast_update降順で記事一覧を返す。
func (r *PostgresArticleRepo) List(ctx context.Context, releasedOnly bool) ([]*model.Article, error) {
	query := `SELECT ` + articleColumns + ` FROM articles`
	if releasedOnly {
		query += ` WHERE released = true`
	}
	query += ` ORDER BY last_update DESC`

	return r.queryArticles(ctx, query)
}

// ListByCategory は指定カテゴリの公開記事をlast_update降順で返す。
func (r *PostgresArticleRepo) ListByCategory(ctx context.Context, category string) ([]*model.Article, error) {
	return r.queryArticles(ctx,
		`SELECT `+articleColumns+` FROM articles
		 WHERE released = true AND category = $1
		 ORDER BY last_update DESC`,
		category,
	)
}

// ListWhatsNew は最新の公開記事を最大n件返す。
func (r *PostgresArticleRepo) ListWhatsNew(ctx context.Context, n int) ([]*model.Article, error) {
	if n <= 0 {
		return []*model.Article{}, nil
	}
	return r.queryArticles(ctx,
		`SELECT `+articleColumns+` FROM articles
		 WHERE released = true
		 ORDER BY last_update DESC
		 LIMIT $1`,
		n,
	)
}

// ListSlugs は全記事のslugを返す。
func (r *PostgresArticleRepo) ListSlugs(ctx context.Context) ([]string, error) {
	return querySlugs(ctx, r.db, `SELECT slug FROM articles ORDER BY last_update DESC`)
}

func (r *PostgresArticleRepo) findIDBySlug(ctx context.Context, slug string) (string, error) {
	var id string
	err := r.db.QueryRowContext(ctx,
		`SELECT id FROM articles WHERE slug = $1 LIMIT 1`,
		slug,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("記事が見つかりません: %s: %w", slug, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("記事IDの取得に失敗しました: %w", err)
	}
	return id, nil
}

func (r *PostgresArticleRepo) queryArticles(ctx context.Context, query string, args ...any) ([]*model.Article, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("記事一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	articles := make([]*model.Article, 0)
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("記事のスキャンに失敗しました: %w", err)
		}
		articles = append(articles, article)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("記事一覧の読み取りに失敗しました: %w", err)
	}
	return articles, nil
}

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

func scanArticle(s rowScanner) (*model.Article, error) {
	article := &model.Article{}
	var tags pq.StringArray
	err := s.Scan(
		&article.ID, &article.Title, &article.Thumbnail, &article.Contents, &article.Description,
		&article.Author, &article.Slug, &article.Category, &tags,
		&article.Released, &article.LastUpdate,
	)
	if err != nil {
		return nil, err
	}
	article.Tags = []string(tags)
	if article.Tags == nil {
		article.Tags = []string{}
	}
	return article, nil
}

func querySlugs(ctx context.Context, db *sql.DB, query string) ([]string, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("slug一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	slugs := make([]string, 0)
	for rows.Next() {
		var slug string
		if err := rows.Scan(&slug); err != nil {
			return nil, fmt.Errorf("slugのスキャンに失敗しました: %w", err)
		}
		slugs = append(slugs, slug)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("slug一覧の読み取りに失敗しました: %w", err)
	}
	return slugs, nil
}

// isUniqueViolation はerrが一意制約違反かどうかを判定する。
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation
}

func tagsOrEmpty(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

var _ ArticleRepository = (*PostgresArticleRepo)(nil)
