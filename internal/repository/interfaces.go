// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/blogman/internal/model"
)

// ErrNotFound はslugに一致するレコードが存在しない場合に更新・削除系メソッドが返す。
// 取得系メソッドは見つからない場合にnil, nilを返す。
var ErrNotFound = errors.New("record not found")

// ErrDuplicateSlug は一意制約（slug）違反で書き込みが拒否された場合に返す。
var ErrDuplicateSlug = errors.New("duplicate slug")

// ArticleRepository は記事データの永続化インターフェース。
type ArticleRepository interface {
	// Create は記事を作成する。IDが空の場合は採番する。
	Create(ctx context.Context, article *model.Article) error

	// FindBySlug はslugに一致する最初の記事を取得する。見つからない場合はnilを返す。
	FindBySlug(ctx context.Context, slug string) (*model.Article, error)

	// UpdateBySlug はoriginalSlugの記事を読み直し、title/thumbnail/description/slug/
	// contents/category/tags/released/last_updateを上書きする。
	// 見つからない場合はErrNotFoundを返す。
	UpdateBySlug(ctx context.Context, originalSlug string, article *model.Article) error

	// DeleteBySlug はslugに一致する記事を削除する。見つからない場合はErrNotFoundを返す。
	DeleteBySlug(ctx context.Context, slug string) error

	// List はlast_update降順で記事を返す。releasedOnlyがtrueの場合は公開記事のみ。
	List(ctx context.Context, releasedOnly bool) ([]*model.Article, error)

	// ListByCategory は指定カテゴリの公開記事をlast_update降順で返す。
	ListByCategory(ctx context.Context, category string) ([]*model.Article, error)

	// ListWhatsNew は最新の公開記事を最大n件返す。
	ListWhatsNew(ctx context.Context, n int) ([]*model.Article, error)

	// ListSlugs は全記事のslugを返す。
	ListSlugs(ctx context.Context) ([]string, error)
}

// CategoryRepository はカテゴリデータの永続化インターフェース。
type CategoryRepository interface {
	// List は全カテゴリを作成順に返す。
	List(ctx context.Context) ([]*model.Category, error)

	// FindBySlug はslugに一致するカテゴリを取得する。見つからない場合はnilを返す。
	FindBySlug(ctx context.Context, slug string) (*model.Category, error)

	// Create はカテゴリを作成する。
	Create(ctx context.Context, category *model.Category) error

	// UpdateBySlug は指定slugのカテゴリのname/slugを更新する。nilのフィールドは変更しない。
	// 見つからない場合はErrNotFoundを返す。
	UpdateBySlug(ctx context.Context, slug string, update model.CategoryUpdate) error

	// DeleteBySlug はカテゴリを削除する。記事側の参照は変更しない。
	DeleteBySlug(ctx context.Context, slug string) error

	// ListSlugs は全カテゴリのslugを返す。
	ListSlugs(ctx context.Context) ([]string, error)
}

// TagRepository はタグデータの永続化インターフェース。
type TagRepository interface {
	// List は全タグを作成順に返す。
	List(ctx context.Context) ([]*model.Tag, error)

	// Create はタグを作成する。
	Create(ctx context.Context, tag *model.Tag) error

	// DeleteBySlug はslugに一致するタグを削除する。見つからない場合はErrNotFoundを返す。
	DeleteBySlug(ctx context.Context, slug string) error

	// ListSlugs は全タグのslugを返す。
	ListSlugs(ctx context.Context) ([]string, error)
}
