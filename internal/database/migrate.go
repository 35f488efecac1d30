// Package database はデータベース接続とマイグレーション管理を提供する。
package database

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// migrations は記事・カテゴリ・タグのスキーマ定義。
//
//go:embed migrations/*.sql
var migrations embed.FS

// schemaSource は埋め込みSQLをgolang-migrateのソースとして開く。
func schemaSource() (source.Driver, error) {
	sub, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return nil, fmt.Errorf("マイグレーションディレクトリの取得に失敗しました: %w", err)
	}
	src, err := iofs.New(sub, ".")
	if err != nil {
		return nil, fmt.Errorf("マイグレーションソースの作成に失敗しました: %w", err)
	}
	return src, nil
}

// SchemaVersions は埋め込まれたマイグレーションのバージョンを昇順で返す。
func SchemaVersions() ([]uint, error) {
	src, err := schemaSource()
	if err != nil {
		return nil, err
	}
	defer src.Close()

	v, err := src.First()
	if err != nil {
		return nil, fmt.Errorf("先頭マイグレーションの読み込みに失敗しました: %w", err)
	}
	versions := []uint{v}
	for {
		next, err := src.Next(v)
		if errors.Is(err, fs.ErrNotExist) {
			return versions, nil
		}
		if err != nil {
			return nil, fmt.Errorf("マイグレーション %d の次の読み込みに失敗しました: %w", v, err)
		}
		versions = append(versions, next)
		v = next
	}
}

// NewMigrator はdatabaseURLのPostgreSQLに対するmigrateインスタンスを生成する。
func NewMigrator(databaseURL string) (*migrate.Migrate, error) {
	src, err := schemaSource()
	if err != nil {
		return nil, err
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("マイグレーターの作成に失敗しました: %w", err)
	}
	return m, nil
}

// RunMigrations は未適用のマイグレーションをすべて適用する。
// 最新の場合は何もしない。
func RunMigrations(databaseURL string) error {
	m, err := NewMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("マイグレーションの適用に失敗しました: %w", err)
	}
	return nil
}
