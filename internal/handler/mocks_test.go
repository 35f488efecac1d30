package handler

import (
	"context"
	"html/template"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/hitoshi/blogman/internal/markdown"
	"github.com/hitoshi/blogman/internal/media"
	"github.com/hitoshi/blogman/internal/middleware"
	"github.com/hitoshi/blogman/internal/model"
	"github.com/hitoshi/blogman/internal/view"
)

// --- モック定義 ---

type mockArticleService struct {
	createFn         func(ctx context.Context, input model.ArticleInput) (*model.Article, error)
	getFn            func(ctx context.Context, slug string) (*model.Article, error)
	getReleasedFn    func(ctx context.Context, slug string) (*model.Article, error)
	listReleasedFn   func(ctx context.Context) ([]*model.Article, error)
	listAllFn        func(ctx context.Context) ([]*model.Article, error)
	listByCategoryFn func(ctx context.Context, category string) ([]*model.Article, error)
	whatsNewFn       func(ctx context.Context, n int) ([]*model.Article, error)
	updateFn         func(ctx context.Context, originalSlug string, update model.ArticleUpdate) (*model.Article, error)
	deleteFn         func(ctx context.Context, slug string) error
}

func (m *mockArticleService) Create(ctx context.Context, input model.ArticleInput) (*model.Article, error) {
	if m.createFn != nil {
		return m.createFn(ctx, input)
	}
	return &model.Article{}, nil
}

func (m *mockArticleService) Get(ctx context.Context, slug string) (*model.Article, error) {
	if m.getFn != nil {
		return m.getFn(ctx, slug)
	}
	return nil, model.NewArticleNotFoundError(slug)
}

func (m *mockArticleService) GetReleased(ctx context.Context, slug string) (*model.Article, error) {
	if m.getReleasedFn != nil {
		return m.getReleasedFn(ctx, slug)
	}
	return nil, model.NewArticleNotFoundError(slug)
}

func (m *mockArticleService) ListReleased(ctx context.Context) ([]*model.Article, error) {
	if m.listReleasedFn != nil {
		return m.listReleasedFn(ctx)
	}
	return nil, nil
}

func (m *mockArticleService) ListAll(ctx context.Context) ([]*model.Article, error) {
	if m.listAllFn != nil {
		return m.listAllFn(ctx)
	}
	return nil, nil
}

func (m *mockArticleService) ListByCategory(ctx context.Context, category string) ([]*model.Article, error) {
	if m.listByCategoryFn != nil {
		return m.listByCategoryFn(ctx, category)
	}
	return nil, nil
}

func (m *mockArticleService) WhatsNew(ctx context.Context, n int) ([]*model.Article, error) {
	if m.whatsNewFn != nil {
		return m.whatsNewFn(ctx, n)
	}
	return nil, nil
}

func (m *mockArticleService) Update(ctx context.Context, originalSlug string, update model.ArticleUpdate) (*model.Article, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, originalSlug, update)
	}
	return &model.Article{}, nil
}

func (m *mockArticleService) Delete(ctx context.Context, slug string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, slug)
	}
	return nil
}

type mockTaxonomyService struct {
	listCategoriesFn func(ctx context.Context) ([]*model.Category, error)
	createCategoryFn func(ctx context.Context, name, slug string) (*model.Category, error)
	bulkUpdateFn     func(ctx context.Context, updates map[string]model.CategoryUpdate) error
	deleteCategoryFn func(ctx context.Context, slug string) error
	listTagsFn       func(ctx context.Context) ([]*model.Tag, error)
	createTagFn      func(ctx context.Context, name, slug string) (*model.Tag, error)
	deleteTagFn      func(ctx context.Context, slug string) error
}

func (m *mockTaxonomyService) ListCategories(ctx context.Context) ([]*model.Category, error) {
	if m.listCategoriesFn != nil {
		return m.listCategoriesFn(ctx)
	}
	return nil, nil
}

func (m *mockTaxonomyService) CreateCategory(ctx context.Context, name, slug string) (*model.Category, error) {
	if m.createCategoryFn != nil {
		return m.createCategoryFn(ctx, name, slug)
	}
	return &model.Category{Name: name, Slug: slug}, nil
}

func (m *mockTaxonomyService) BulkUpdate(ctx context.Context, updates map[string]model.CategoryUpdate) error {
	if m.bulkUpdateFn != nil {
		return m.bulkUpdateFn(ctx, updates)
	}
	return nil
}

func (m *mockTaxonomyService) DeleteCategory(ctx context.Context, slug string) error {
	if m.deleteCategoryFn != nil {
		return m.deleteCategoryFn(ctx, slug)
	}
	return nil
}

// CategoryName / CategoryNames はListCategoriesの結果から引く。
func (m *mockTaxonomyService) CategoryName(ctx context.Context, slug string) (string, error) {
	names, err := m.CategoryNames(ctx)
	if err != nil {
		return "", err
	}
	if name, ok := names[slug]; ok {
		return name, nil
	}
	return slug, nil
}

func (m *mockTaxonomyService) CategoryNames(ctx context.Context) (map[string]string, error) {
	categories, err := m.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(categories))
	for _, c := range categories {
		names[c.Slug] = c.Name
	}
	return names, nil
}

func (m *mockTaxonomyService) ListTags(ctx context.Context) ([]*model.Tag, error) {
	if m.listTagsFn != nil {
		return m.listTagsFn(ctx)
	}
	return nil, nil
}

func (m *mockTaxonomyService) CreateTag(ctx context.Context, name, slug string) (*model.Tag, error) {
	if m.createTagFn != nil {
		return m.createTagFn(ctx, name, slug)
	}
	return &model.Tag{Name: name, Slug: slug}, nil
}

func (m *mockTaxonomyService) DeleteTag(ctx context.Context, slug string) error {
	if m.deleteTagFn != nil {
		return m.deleteTagFn(ctx, slug)
	}
	return nil
}

type mockAuthService struct {
	loginFn func(ctx context.Context, email, password string) (*model.LoginResult, error)
}

func (m *mockAuthService) Login(ctx context.Context, email, password string) (*model.LoginResult, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, email, password)
	}
	return &model.LoginResult{}, nil
}

func (m *mockAuthService) SessionTTL() time.Duration {
	return 5 * 24 * time.Hour
}

type mockProfileService struct {
	getProfileFn    func(ctx context.Context, email string) (*model.AdminUser, error)
	updateProfileFn func(ctx context.Context, email string, update model.ProfileUpdate) (*model.AdminUser, error)
}

func (m *mockProfileService) GetProfile(ctx context.Context, email string) (*model.AdminUser, error) {
	if m.getProfileFn != nil {
		return m.getProfileFn(ctx, email)
	}
	return &model.AdminUser{Email: email}, nil
}

func (m *mockProfileService) UpdateProfile(ctx context.Context, email string, update model.ProfileUpdate) (*model.AdminUser, error) {
	if m.updateProfileFn != nil {
		return m.updateProfileFn(ctx, email, update)
	}
	return &model.AdminUser{Email: email}, nil
}

type mockMediaStore struct {
	saveFn   func(ctx context.Context, filename string, r io.Reader) (string, error)
	importFn func(ctx context.Context, rawURL string) (string, error)
	listFn   func() ([]media.Image, error)
}

func (m *mockMediaStore) Save(ctx context.Context, filename string, r io.Reader) (string, error) {
	if m.saveFn != nil {
		return m.saveFn(ctx, filename, r)
	}
	return filename, nil
}

func (m *mockMediaStore) Import(ctx context.Context, rawURL string) (string, error) {
	if m.importFn != nil {
		return m.importFn(ctx, rawURL)
	}
	return "", nil
}

func (m *mockMediaStore) List() ([]media.Image, error) {
	if m.listFn != nil {
		return m.listFn()
	}
	return nil, nil
}

type mockMarkdown struct {
	renderFn func(source string) (template.HTML, error)
}

func (m *mockMarkdown) RenderHTML(source string) (template.HTML, error) {
	if m.renderFn != nil {
		return m.renderFn(source)
	}
	return template.HTML("<p>" + template.HTMLEscapeString(source) + "</p>"), nil
}

type mockPinger struct {
	pingFn func(ctx context.Context) error
}

func (m *mockPinger) PingContext(ctx context.Context) error {
	if m.pingFn != nil {
		return m.pingFn(ctx)
	}
	return nil
}

type mockBytesSource struct {
	data []byte
	err  error
}

func (m *mockBytesSource) ReadFile(ctx context.Context) ([]byte, error) { return m.data, m.err }
func (m *mockBytesSource) Render(ctx context.Context) ([]byte, error)   { return m.data, m.err }

// --- テストヘルパー ---

const (
	testCSRFToken = "test-csrf-token"
	testSiteName  = "テストブログ"
)

// testDeps はモックと実際のテンプレートを使ったRouterDepsを返す。
func testDeps(t *testing.T) *RouterDeps {
	t.Helper()
	pages, err := view.New(nil)
	if err != nil {
		t.Fatalf("view.New() error = %v", err)
	}
	return &RouterDeps{
		Pages:           pages,
		SiteName:        testSiteName,
		BaseURL:         "https://blog.example.com",
		ArticleService:  &mockArticleService{},
		TaxonomyService: &mockTaxonomyService{},
		Markdown:        markdown.NewRenderer(nil),
		WhatsNewCount:   5,
		AuthService:     &mockAuthService{},
		ProfileService:  &mockProfileService{},
		MediaStore:      &mockMediaStore{},
		Sitemap:         &mockBytesSource{},
		Feed:            &mockBytesSource{},
	}
}

// adminCookies はプレゼンス確認のみの認証を通過するCookieを返す。
func adminCookies() []*http.Cookie {
	return []*http.Cookie{
		{Name: middleware.SessionCookieName, Value: "session-cookie"},
		{Name: middleware.UsernameCookieName, Value: url.QueryEscape("管理者")},
		{Name: middleware.EmailCookieName, Value: url.QueryEscape("admin@example.com")},
	}
}

func doGet(h http.Handler, path string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// doPost はCSRFトークン付きでフォームを送信する。
func doPost(h http.Handler, path string, form url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	if form == nil {
		form = url.Values{}
	}
	form.Set(middleware.CSRFFieldName, testCSRFToken)
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(&http.Cookie{Name: "csrf_token", Value: testCSRFToken})
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func parseHTML(t *testing.T, w *httptest.ResponseRecorder) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(w.Body)
	if err != nil {
		t.Fatalf("HTMLの解析に失敗: %v", err)
	}
	return doc
}

func assertRedirect(t *testing.T, w *httptest.ResponseRecorder, status int, location string) {
	t.Helper()
	if w.Code != status {
		t.Fatalf("status = %d, want %d (body=%s)", w.Code, status, w.Body.String())
	}
	if got := w.Header().Get("Location"); got != location {
		t.Errorf("Location = %q, want %q", got, location)
	}
}

func newFormRequest(method, path string, form url.Values) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}
