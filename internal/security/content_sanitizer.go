// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ContentSanitizerService はマークダウンから変換した記事HTMLをサニタイズする。
// 管理者が書いた本文であっても、埋め込まれたscriptやイベント属性は公開ページに出さない。
package security

import (
	"regexp"

	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizerService はHTMLコンテンツのサニタイズ機能のインターフェースを定義する。
type ContentSanitizerService interface {
	// Sanitize はHTMLコンテンツをサニタイズして安全なHTMLを返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(rawHTML string) string
}

// codeLanguageClass はフェンスドコードブロックに付与される言語クラス。
var codeLanguageClass = regexp.MustCompile(`^language-[\w+#-]+$`)

// contentSanitizer はContentSanitizerServiceの実装。
type contentSanitizer struct {
	policy *bluemonday.Policy
}

// NewContentSanitizer は記事本文向けのサニタイザを生成する。
// bluemondayのUGCポリシーを土台に以下を加える:
//   - 見出し、表、取り消し線、タスクリストのチェックボックス
//   - コードブロックの language-* クラス
//   - 相対URL（/static/images/ 配下のアップロード画像を参照するため）
//   - 外部リンクへの target="_blank" と rel="noopener noreferrer" の付与
func NewContentSanitizer() *contentSanitizer {
	p := bluemonday.UGCPolicy()

	p.AllowElements("h1", "h2", "h3", "h4", "h5", "h6", "del", "hr")
	p.AllowTables()
	p.AllowAttrs("align").Matching(regexp.MustCompile(`^(left|center|right)$`)).OnElements("th", "td")
	p.AllowAttrs("class").Matching(codeLanguageClass).OnElements("code")
	p.AllowAttrs("type").Matching(regexp.MustCompile(`^checkbox$`)).OnElements("input")
	p.AllowAttrs("checked", "disabled").OnElements("input")

	p.AllowRelativeURLs(true)
	p.AllowURLSchemes("http", "https", "mailto")
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)

	return &contentSanitizer{policy: p}
}

// Sanitize はHTMLコンテンツをサニタイズして安全なHTMLを返す。
func (s *contentSanitizer) Sanitize(rawHTML string) string {
	return s.policy.Sanitize(rawHTML)
}

var _ ContentSanitizerService = (*contentSanitizer)(nil)
