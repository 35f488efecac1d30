// Package feed は公開記事のRSS 2.0フィードを生成する。
package feed

import (
	"context"
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/hitoshi/blogman/internal/model"
)

// ContentType はRSSレスポンスのContent-Type。
const ContentType = "application/rss+xml; charset=utf-8"

// RSS はRSS 2.0のルート要素。
type RSS struct {
	XMLName xml.Name `xml:"rss"`
	Version string   `xml:"version,attr"`
	Channel Channel  `xml:"channel"`
}

// Channel はRSSのchannel要素。
type Channel struct {
	Title         string `xml:"title"`
	Link          string `xml:"link"`
	Description   string `xml:"description"`
	Language      string `xml:"language,omitempty"`
	LastBuildDate string `xml:"lastBuildDate,omitempty"`
	Items         []Item `xml:"item"`
}

// Item はRSSのitem要素。
type Item struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	GUID        GUID   `xml:"guid"`
	PubDate     string `xml:"pubDate"`
	Description string `xml:"description,omitempty"`
	Author      string `xml:"author,omitempty"`
	Category    string `xml:"category,omitempty"`
}

// GUID はitemの一意識別子。記事URLをパーマリンクとして使う。
type GUID struct {
	Value       string `xml:",chardata"`
	IsPermaLink bool   `xml:"isPermaLink,attr"`
}

// ArticleSource は新着の公開記事を取得するインターフェース。
type ArticleSource interface {
	WhatsNew(ctx context.Context, n int) ([]*model.Article, error)
}

// Config はフィードのチャンネル情報。
type Config struct {
	Title       string
	Description string
	BaseURL     string
	Language    string
	ItemCount   int
}

// Builder は新着記事からRSSを組み立てる。
type Builder struct {
	source ArticleSource
	config Config
}

// NewBuilder はBuilderを生成する。
func NewBuilder(source ArticleSource, config Config) *Builder {
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.Language == "" {
		config.Language = "ja"
	}
	return &Builder{source: source, config: config}
}

// Build はRSSを組み立てる。lastBuildDateには最新記事の更新日時を使う。
func (b *Builder) Build(ctx context.Context) (*RSS, error) {
	articles, err := b.source.WhatsNew(ctx, b.config.ItemCount)
	if err != nil {
		return nil, fmt.Errorf("フィード用の記事取得に失敗しました: %w", err)
	}

	channel := Channel{
		Title:       b.config.Title,
		Link:        b.config.BaseURL + "/",
		Description: b.config.Description,
		Language:    b.config.Language,
		Items:       make([]Item, 0, len(articles)),
	}

	var latest time.Time
	for _, a := range articles {
		link := fmt.Sprintf("%s/category/%s/%s", b.config.BaseURL, a.Category, a.Slug)
		channel.Items = append(channel.Items, Item{
			Title:       a.Title,
			Link:        link,
			GUID:        GUID{Value: link, IsPermaLink: true},
			PubDate:     a.LastUpdate.Format(time.RFC1123Z),
			Description: a.Description,
			Author:      a.Author,
			Category:    a.Category,
		})
		if a.LastUpdate.After(latest) {
			latest = a.LastUpdate
		}
	}
	if !latest.IsZero() {
		channel.LastBuildDate = latest.Format(time.RFC1123Z)
	}

	return &RSS{Version: "2.0", Channel: channel}, nil
}

// Render はRSSをXML宣言付きで出力する。
func (b *Builder) Render(ctx context.Context) ([]byte, error) {
	rss, err := b.Build(ctx)
	if err != nil {
		return nil, err
	}
	body, err := xml.MarshalIndent(rss, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("RSSのXML変換に失敗しました: %w", err)
	}
	return append([]byte(xml.Header), body...), nil
}
