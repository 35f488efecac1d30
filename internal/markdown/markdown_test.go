package markdown

import (
	"strings"
	"testing"

	"github.com/hitoshi/blogman/internal/security"
)

func newTestRenderer() *Renderer {
	return NewRenderer(security.NewContentSanitizer())
}

func TestRender_GFMExtensions(t *testing.T) {
	r := newTestRenderer()

	tests := []struct {
		name   string
		source string
		want   []string
	}{
		{"見出し", "# タイトル", []string{"<h1", "タイトル</h1>"}},
		{"表", "| a | b |\n|---|---|\n| 1 | 2 |", []string{"<table>", "<th>a</th>", "<td>1</td>"}},
		{"取り消し線", "~~old~~", []string{"<del>old</del>"}},
		{"フェンスドコード", "```go\nfunc main() {}\n```", []string{`<code class="language-go">`, "func main() {}"}},
		{"自動リンク", "https://example.com", []string{`href="https://example.com"`}},
		{"タスクリスト", "- [x] done", []string{`type="checkbox"`, "checked"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Render(tt.source)
			if err != nil {
				t.Fatalf("Render error: %v", err)
			}
			for _, want := range tt.want {
				if !strings.Contains(got, want) {
					t.Errorf("Render(%q) = %q, expected to contain %q", tt.source, got, want)
				}
			}
		})
	}
}

func TestRender_SanitizesRawHTML(t *testing.T) {
	r := newTestRenderer()

	got, err := r.Render("本文\n\n<script>alert(1)</script>\n\n<img src=\"/static/images/a.png\" onerror=\"x()\">")
	if err != nil {
		t.Fatalf("Render error: %v", err)
	}
	if strings.Contains(got, "<script") || strings.Contains(got, "onerror") {
		t.Errorf("dangerous markup survived: %q", got)
	}
	if !strings.Contains(got, `src="/static/images/a.png"`) {
		t.Errorf("uploaded image was removed: %q", got)
	}
}

func TestRenderHTML(t *testing.T) {
	got, err := newTestRenderer().RenderHTML("**bold**")
	if err != nil {
		t.Fatalf("RenderHTML error: %v", err)
	}
	if !strings.Contains(string(got), "<strong>bold</strong>") {
		t.Errorf("RenderHTML = %q", got)
	}
}

func TestExcerpt(t *testing.T) {
	r := newTestRenderer()

	tests := []struct {
		name   string
		source string
		limit  int
		want   string
	}{
		{"タグと記号を除去する", "# 見出し\n\n**太字**の本文", 100, "見出し 太字 の本文"},
		{"文字数で切り詰める", "あいうえおかきくけこ", 5, "あいうえお…"},
		{"ちょうどの長さは切り詰めない", "abcde", 5, "abcde"},
		{"空入力", "", 10, ""},
		{"limitが0", "abc", 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.Excerpt(tt.source, tt.limit); got != tt.want {
				t.Errorf("Excerpt(%q, %d) = %q, want %q", tt.source, tt.limit, got, tt.want)
			}
		})
	}
}

func TestPlainText_SkipsScriptAndStyle(t *testing.T) {
	got := PlainText("<p>a</p><script>var x = 1;</script><style>p{}</style><p>b</p>")
	if got != "a b" {
		t.Errorf("PlainText = %q, want %q", got, "a b")
	}
}
