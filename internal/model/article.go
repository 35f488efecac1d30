// Package model はドメインモデルを定義する。
package model

import (
	"strings"
	"time"
)

// Article はブログ記事を表す。
// 記事の同一性はSlugで判定する（IDはストレージ上の識別子）。
type Article struct {
	ID          string
	Title       string
	Thumbnail   string // マークダウン
	Contents    string // マークダウン
	Description string
	Author      string
	Slug        string
	Category    string   // カテゴリのslug（参照整合性なし）
	Tags        []string // タグのslug（参照整合性なし）
	LastUpdate  time.Time
	Released    bool
}

// ArticleInput は記事の作成・更新時にフォームから受け取る値。
// 更新時はAuthorを除く全フィールドで上書きする。
type ArticleInput struct {
	Title       string
	Thumbnail   string
	Contents    string
	Description string
	Author      string
	Slug        string
	Category    string
	Tags        []string
	Released    bool
}

// ArticleUpdate は記事の上書き更新対象フィールドを表す。
// last_updateはリポジトリ側で必ず更新される。
type ArticleUpdate struct {
	Title       string
	Thumbnail   string
	Description string
	Slug        string
	Contents    string
	Category    string
	Tags        []string
	Released    bool
}

// Slugify はslugを正規化する。全て小文字にし、空白はハイフンに置換する。
func Slugify(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "-")
}
