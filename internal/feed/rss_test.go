package feed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/hitoshi/blogman/internal/model"
)

type mockSource struct {
	whatsNewFn func(ctx context.Context, n int) ([]*model.Article, error)
}

func (m *mockSource) WhatsNew(ctx context.Context, n int) ([]*model.Article, error) {
	return m.whatsNewFn(ctx, n)
}

func TestRender_ParsesAsRSS(t *testing.T) {
	updated := time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)
	source := &mockSource{whatsNewFn: func(ctx context.Context, n int) ([]*model.Article, error) {
		if n != 3 {
			t.Errorf("n = %d, want 3", n)
		}
		return []*model.Article{
			{Title: "新しい記事", Slug: "new-post", Category: "go", Description: "概要", LastUpdate: updated, Released: true},
			{Title: "古い記事", Slug: "old-post", Category: "python", LastUpdate: updated.Add(-48 * time.Hour), Released: true},
		}, nil
	}}
	b := NewBuilder(source, Config{Title: "Blog", Description: "desc", BaseURL: "https://example.com/", ItemCount: 3})

	data, err := b.Render(context.Background())
	if err != nil {
		t.Fatalf("Render error: %v", err)
	}

	parsed, err := gofeed.NewParser().ParseString(string(data))
	if err != nil {
		t.Fatalf("gofeed failed to parse output: %v", err)
	}
	if parsed.FeedType != "rss" || parsed.FeedVersion != "2.0" {
		t.Errorf("feed type = %s %s, want rss 2.0", parsed.FeedType, parsed.FeedVersion)
	}
	if parsed.Title != "Blog" || parsed.Link != "https://example.com/" {
		t.Errorf("channel = %q %q", parsed.Title, parsed.Link)
	}
	if len(parsed.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(parsed.Items))
	}

	first := parsed.Items[0]
	if first.Title != "新しい記事" {
		t.Errorf("title = %q", first.Title)
	}
	if first.Link != "https://example.com/category/go/new-post" {
		t.Errorf("link = %q", first.Link)
	}
	if first.GUID != first.Link {
		t.Errorf("guid = %q, want link", first.GUID)
	}
	if first.PublishedParsed == nil || !first.PublishedParsed.Equal(updated) {
		t.Errorf("published = %v, want %v", first.PublishedParsed, updated)
	}
	if first.Description != "概要" {
		t.Errorf("description = %q", first.Description)
	}
	if parsed.UpdatedParsed == nil || !parsed.UpdatedParsed.Equal(updated) {
		t.Errorf("lastBuildDate = %v, want %v", parsed.UpdatedParsed, updated)
	}
}

func TestRender_EmptyFeed(t *testing.T) {
	source := &mockSource{whatsNewFn: func(ctx context.Context, n int) ([]*model.Article, error) {
		return []*model.Article{}, nil
	}}
	b := NewBuilder(source, Config{Title: "Blog", BaseURL: "https://example.com"})

	data, err := b.Render(context.Background())
	if err != nil {
		t.Fatalf("Render error: %v", err)
	}
	parsed, err := gofeed.NewParser().ParseString(string(data))
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if len(parsed.Items) != 0 {
		t.Errorf("items = %d, want 0", len(parsed.Items))
	}
}

func TestBuild_SourceError(t *testing.T) {
	boom := errors.New("boom")
	source := &mockSource{whatsNewFn: func(ctx context.Context, n int) ([]*model.Article, error) {
		return nil, boom
	}}
	b := NewBuilder(source, Config{})

	if _, err := b.Build(context.Background()); !errors.Is(err, boom) {
		t.Errorf("error = %v, want wrapped boom", err)
	}
}
