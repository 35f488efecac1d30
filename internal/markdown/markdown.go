// Package markdown は記事本文のマークダウンを安全なHTMLへ変換する。
package markdown

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"unicode"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	gmhtml "github.com/yuin/goldmark/renderer/html"
	"golang.org/x/net/html"
)

// ellipsis は抜粋を切り詰めた場合に末尾へ付ける記号。
const ellipsis = "…"

// Sanitizer はHTMLサニタイズのインターフェース。
type Sanitizer interface {
	Sanitize(rawHTML string) string
}

// Renderer はgoldmark（GFM拡張）で変換し、結果をサニタイズする。
// 生成したgoldmarkインスタンスは並行利用できる。
type Renderer struct {
	md        goldmark.Markdown
	sanitizer Sanitizer
}

// NewRenderer はRendererを生成する。
// 表、取り消し線、自動リンク、タスクリスト、フェンスドコードブロックに対応する。
func NewRenderer(sanitizer Sanitizer) *Renderer {
	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
		goldmark.WithRendererOptions(
			gmhtml.WithHardWraps(),
			gmhtml.WithUnsafe(),
		),
	)
	return &Renderer{md: md, sanitizer: sanitizer}
}

// Render はマークダウンをサニタイズ済みのHTML文字列に変換する。
func (r *Renderer) Render(source string) (string, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(source), &buf); err != nil {
		return "", fmt.Errorf("マークダウンの変換に失敗しました: %w", err)
	}
	if r.sanitizer == nil {
		return buf.String(), nil
	}
	return r.sanitizer.Sanitize(buf.String()), nil
}

// RenderHTML はテンプレートへ埋め込める形でHTMLを返す。
// サニタイズ済みの出力のみをtemplate.HTMLとして扱う。
func (r *Renderer) RenderHTML(source string) (template.HTML, error) {
	out, err := r.Render(source)
	if err != nil {
		return "", err
	}
	return template.HTML(out), nil
}

// Excerpt はマークダウンをHTMLへ変換したうえでタグを除去し、先頭limit文字を返す。
// 連続する空白は1つにまとめる。limit以下の場合はそのまま返す。
func (r *Renderer) Excerpt(source string, limit int) string {
	rendered, err := r.Render(source)
	if err != nil {
		return ""
	}
	return truncate(PlainText(rendered), limit)
}

// PlainText はHTMLからテキストのみを取り出す。script/style要素の中身は含めない。
func PlainText(fragment string) string {
	tokenizer := html.NewTokenizer(strings.NewReader(fragment))
	var b strings.Builder
	skip := 0

	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return strings.Join(strings.FieldsFunc(b.String(), unicode.IsSpace), " ")
		case html.StartTagToken:
			name, _ := tokenizer.TagName()
			if isSkippedElement(string(name)) {
				skip++
			}
			b.WriteByte(' ')
		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			if isSkippedElement(string(name)) && skip > 0 {
				skip--
			}
			b.WriteByte(' ')
		case html.SelfClosingTagToken:
			b.WriteByte(' ')
		case html.TextToken:
			if skip == 0 {
				b.Write(tokenizer.Text())
			}
		}
	}
}

func isSkippedElement(name string) bool {
	return name == "script" || name == "style"
}

func truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return strings.TrimRightFunc(string(runes[:limit]), unicode.IsSpace) + ellipsis
}
