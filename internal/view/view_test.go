package view

import (
	"html/template"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/hitoshi/blogman/internal/media"
	"github.com/hitoshi/blogman/internal/model"
)

func newTestRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := New(nil)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return r
}

func render(t *testing.T, r *Renderer, status int, page string, data any) (*httptest.ResponseRecorder, *goquery.Document) {
	t.Helper()
	w := httptest.NewRecorder()
	r.Render(w, status, page, data)
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(w.Body.String()))
	if err != nil {
		t.Fatalf("HTMLの解析に失敗: %v", err)
	}
	return w, doc
}

func TestNew_ParsesAllPages(t *testing.T) {
	r := newTestRenderer(t)
	for _, p := range pages {
		if _, ok := r.pages[p]; !ok {
			t.Errorf("page %q is not parsed", p)
		}
	}
}

func TestRender_Index(t *testing.T) {
	r := newTestRenderer(t)
	data := IndexData{
		Page: Page{Title: "ブログ一覧", SiteName: "blogman"},
		Cards: []ArticleCard{{
			Article: &model.Article{
				Title:       "Hello",
				Slug:        "hello-world",
				Category:    "go",
				Description: "<script>x</script>",
				LastUpdate:  time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			},
			CategoryName: "Go言語",
			Thumbnail:    template.HTML("<p><img src=\"/static/images/a.png\"></p>"),
		}},
	}

	w, doc := render(t, r, http.StatusOK, PageIndex, data)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
	if got := doc.Find("title").Text(); got != "ブログ一覧 | blogman" {
		t.Errorf("title = %q", got)
	}
	link, _ := doc.Find(".article-card a.title").Attr("href")
	if link != "/category/go/hello-world" {
		t.Errorf("article link = %q", link)
	}
	if got := doc.Find(".article-card .category").Text(); got != "Go言語" {
		t.Errorf("category = %q", got)
	}
	if doc.Find(".article-card .thumbnail img").Length() != 1 {
		t.Error("サムネイルのHTMLが描画されていません")
	}
	if doc.Find(".description script").Length() != 0 {
		t.Error("説明文がエスケープされていません")
	}
	if got := doc.Find(".article-card time").Text(); got != "2024/03/01" {
		t.Errorf("date = %q", got)
	}
	if doc.Find(".admin-nav").Length() != 0 {
		t.Error("未ログインで管理メニューが表示されました")
	}
}

func TestRender_AdminNavigationAndCSRF(t *testing.T) {
	r := newTestRenderer(t)
	data := CategoryData{
		Page: Page{Title: "カテゴリ", Admin: &model.Admin{Name: "管理者"}, CSRFToken: "tok"},
		Categories: []*model.Category{
			{Name: "Go言語", Slug: "go"},
			{Name: "Python", Slug: "python"},
		},
	}

	_, doc := render(t, r, http.StatusOK, PageCategory, data)

	if got := doc.Find(".admin-name").Text(); got != "管理者" {
		t.Errorf("admin name = %q", got)
	}
	doc.Find("form").Each(func(i int, s *goquery.Selection) {
		if v, _ := s.Find("input[name=csrf_token]").Attr("value"); v != "tok" {
			t.Errorf("form %d csrf_token = %q", i, v)
		}
	})
	if _, ok := doc.Find("input[name=cat_name_go]").Attr("value"); !ok {
		t.Error("cat_name_go フィールドがありません")
	}
	if v, _ := doc.Find("input[name=cat_slug_python]").Attr("value"); v != "python" {
		t.Errorf("cat_slug_python = %q", v)
	}
}

func TestRender_EditSelectsCurrentValues(t *testing.T) {
	r := newTestRenderer(t)
	data := EditData{
		Page:   Page{Title: "記事の編集"},
		Action: "article/update",
		Article: &model.Article{
			Title:    "Hello",
			Slug:     "hello",
			Category: "python",
			Tags:     []string{"web"},
		},
		Categories: []*model.Category{{Name: "Go", Slug: "go"}, {Name: "Python", Slug: "python"}},
		Tags:       []*model.Tag{{Name: "CLI", Slug: "cli"}, {Name: "Web", Slug: "web"}},
	}

	_, doc := render(t, r, http.StatusOK, PageEdit, data)

	if action, _ := doc.Find("form.article-form").Attr("action"); action != "/admin/article/update" {
		t.Errorf("action = %q", action)
	}
	if v, _ := doc.Find("input[name=original_slug]").Attr("value"); v != "hello" {
		t.Errorf("original_slug = %q", v)
	}
	if v, _ := doc.Find("option[selected]").Attr("value"); v != "python" {
		t.Errorf("selected category = %q", v)
	}
	if v, _ := doc.Find("input[name=tags][checked]").Attr("value"); v != "web" {
		t.Errorf("checked tag = %q", v)
	}
}

func TestRender_NewArticleForm(t *testing.T) {
	r := newTestRenderer(t)
	_, doc := render(t, r, http.StatusOK, PageEdit, EditData{Page: Page{Title: "新規記事"}, Action: "add"})

	if action, _ := doc.Find("form.article-form").Attr("action"); action != "/admin/add" {
		t.Errorf("action = %q", action)
	}
	if doc.Find("input[name=original_slug]").Length() != 0 {
		t.Error("新規作成でoriginal_slugが出力されました")
	}
}

func TestRender_Media(t *testing.T) {
	r := newTestRenderer(t)
	data := MediaData{Images: []media.Image{{Name: "a.png", URL: "/static/images/a.png"}}}

	_, doc := render(t, r, http.StatusOK, PageMedia, data)

	if src, _ := doc.Find(".image img").Attr("src"); src != "/static/images/a.png" {
		t.Errorf("img src = %q", src)
	}
	if enc, _ := doc.Find("form.upload").Attr("enctype"); enc != "multipart/form-data" {
		t.Errorf("enctype = %q", enc)
	}
}

func TestRender_NotFoundStatus(t *testing.T) {
	r := newTestRenderer(t)
	w, doc := render(t, r, http.StatusNotFound, PageNotFound, Page{Title: "お探しの記事は見つかりませんでした。"})

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
	if got := doc.Find(".not-found").Text(); got != "お探しの記事は見つかりませんでした。" {
		t.Errorf("heading = %q", got)
	}
}

func TestRender_ErrorMessage(t *testing.T) {
	r := newTestRenderer(t)
	_, doc := render(t, r, http.StatusOK, PageLogin, Page{Title: "Login", Error: "パスワードが正しくありません"})

	if got := doc.Find(".error").Text(); got != "パスワードが正しくありません" {
		t.Errorf("error = %q", got)
	}
}

func TestRender_UnknownPage(t *testing.T) {
	r := newTestRenderer(t)
	w := httptest.NewRecorder()
	r.Render(w, http.StatusOK, "missing", nil)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

func TestRender_ExecutionErrorWritesNothingPartial(t *testing.T) {
	fsys := fstest.MapFS{}
	for _, p := range pages {
		fsys["templates/"+p+".html"] = &fstest.MapFile{Data: []byte(`{{define "content"}}{{.Missing}}{{end}}`)}
	}
	fsys["templates/base.html"] = &fstest.MapFile{Data: []byte(`{{define "base"}}<html>{{template "content" .}}</html>{{end}}`)}

	r, err := newRenderer(fsys, nil)
	if err != nil {
		t.Fatalf("newRenderer returned error: %v", err)
	}
	w := httptest.NewRecorder()
	r.Render(w, http.StatusOK, PageIndex, Page{})

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	if strings.Contains(w.Body.String(), "<html>") {
		t.Error("途中までのHTMLが出力されました")
	}
}
