package handler

import (
	"context"
	"net/http"
	"net/url"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/hitoshi/blogman/internal/model"
)

func ptr(s string) *string { return &s }

func TestTaxonomyHandler_Categories(t *testing.T) {
	deps := testDeps(t)
	deps.TaxonomyService = &mockTaxonomyService{
		listCategoriesFn: func(ctx context.Context) ([]*model.Category, error) { return testCategories, nil },
	}

	w := doGet(NewRouter(deps), "/admin/category", adminCookies()...)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	doc := parseHTML(t, w)
	rows := doc.Find("tr.category-row")
	if rows.Length() != 2 {
		t.Fatalf("行数 = %d, want 2", rows.Length())
	}
	if v, _ := rows.First().Find("input[name=cat_name_go]").Attr("value"); v != "Go言語" {
		t.Errorf("cat_name_go = %q", v)
	}
}

func TestTaxonomyHandler_AddCategory(t *testing.T) {
	var gotName, gotSlug string
	deps := testDeps(t)
	deps.TaxonomyService = &mockTaxonomyService{
		createCategoryFn: func(ctx context.Context, name, slug string) (*model.Category, error) {
			gotName, gotSlug = name, slug
			if slug == "go" {
				return nil, model.NewSlugConflictError(slug)
			}
			return &model.Category{Name: name, Slug: slug}, nil
		},
	}
	router := NewRouter(deps)

	w := doPost(router, "/admin/category/add", url.Values{"new_cat_name": {"旅行"}, "new_cat_slug": {"travel"}}, adminCookies()...)
	assertRedirect(t, w, http.StatusSeeOther, "/admin/category")
	if gotName != "旅行" || gotSlug != "travel" {
		t.Errorf("CreateCategory(%q, %q)", gotName, gotSlug)
	}

	w = doPost(router, "/admin/category/add", url.Values{"new_cat_name": {"Go"}, "new_cat_slug": {"go"}}, adminCookies()...)
	assertRedirect(t, w, http.StatusSeeOther, "/admin/category?error="+model.ErrCodeSlugConflict)
}

func TestTaxonomyHandler_UpdateCategories(t *testing.T) {
	var got map[string]model.CategoryUpdate
	deps := testDeps(t)
	deps.TaxonomyService = &mockTaxonomyService{
		bulkUpdateFn: func(ctx context.Context, updates map[string]model.CategoryUpdate) error {
			got = updates
			return nil
		},
	}

	w := doPost(NewRouter(deps), "/admin/category/update", url.Values{
		"cat_name_go":   {"Golang"},
		"cat_slug_go":   {"golang"},
		"cat_name_life": {"暮らし"},
		"other":         {"ignored"},
	}, adminCookies()...)
	assertRedirect(t, w, http.StatusSeeOther, "/admin/category")

	want := map[string]model.CategoryUpdate{
		"go":   {Name: ptr("Golang"), Slug: ptr("golang")},
		"life": {Name: ptr("暮らし")},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("BulkUpdate mismatch (-want +got):\n%s", diff)
	}
}

func TestTaxonomyHandler_DeleteCategory(t *testing.T) {
	var deleted string
	deps := testDeps(t)
	deps.TaxonomyService = &mockTaxonomyService{
		deleteCategoryFn: func(ctx context.Context, slug string) error {
			deleted = slug
			if slug == "missing" {
				return model.NewCategoryNotFoundError(slug)
			}
			return nil
		},
	}
	router := NewRouter(deps)

	assertRedirect(t, doGet(router, "/admin/category/delete?slug=go", adminCookies()...), http.StatusSeeOther, "/admin/category")
	if deleted != "go" {
		t.Errorf("deleted = %q, want go", deleted)
	}
	assertRedirect(t, doGet(router, "/admin/category/delete?slug=missing", adminCookies()...), http.StatusSeeOther, "/admin/category?error="+model.ErrCodeCategoryNotFound)
}

func TestTaxonomyHandler_Tags(t *testing.T) {
	var created []string
	deps := testDeps(t)
	deps.TaxonomyService = &mockTaxonomyService{
		listTagsFn: func(ctx context.Context) ([]*model.Tag, error) {
			return []*model.Tag{{Name: "入門", Slug: "beginner"}}, nil
		},
		createTagFn: func(ctx context.Context, name, slug string) (*model.Tag, error) {
			created = append(created, slug)
			return &model.Tag{Name: name, Slug: slug}, nil
		},
		deleteTagFn: func(ctx context.Context, slug string) error {
			return model.NewTagNotFoundError(slug)
		},
	}
	router := NewRouter(deps)

	w := doGet(router, "/admin/tag", adminCookies()...)
	if got := parseHTML(t, w).Find("li.tag-row").Length(); got != 1 {
		t.Errorf("タグ数 = %d, want 1", got)
	}

	w = doPost(router, "/admin/tag/add", url.Values{"new_tag_name": {"応用"}, "new_tag_slug": {"advanced"}}, adminCookies()...)
	assertRedirect(t, w, http.StatusSeeOther, "/admin/tag")
	if diff := cmp.Diff([]string{"advanced"}, created); diff != "" {
		t.Errorf("created (-want +got):\n%s", diff)
	}

	w = doGet(router, "/admin/tag/delete?slug=none", adminCookies()...)
	assertRedirect(t, w, http.StatusSeeOther, "/admin/tag?error="+model.ErrCodeTagNotFound)
}
