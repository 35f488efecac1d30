package model

// Category は記事のカテゴリを表す。親子関係は持たない。
type Category struct {
	ID   string
	Name string
	Slug string
}

// Tag は記事のタグを表す。
type Tag struct {
	ID   string
	Name string
	Slug string
}

// CategoryUpdate はカテゴリの部分更新を表す。nilのフィールドは変更しない。
type CategoryUpdate struct {
	Name *string
	Slug *string
}
