// Package sitemap は公開記事からsitemap.xmlを生成する。
package sitemap

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/hitoshi/blogman/internal/model"
)

// Namespace はsitemaps.orgのスキーマ名前空間。
const Namespace = "http://www.sitemaps.org/schemas/sitemap/0.9"

const (
	dateLayout = "2006-01-02"

	articleChangeFreq = "monthly"
	articlePriority   = "0.7"
	rootChangeFreq    = "always"
	rootPriority      = "1.0"
)

// URLSet はsitemap.xmlのルート要素。
type URLSet struct {
	XMLName xml.Name `xml:"urlset"`
	Xmlns   string   `xml:"xmlns,attr"`
	URLs    []URL    `xml:"url"`
}

// URL はsitemap.xmlの1エントリ。
type URL struct {
	Loc        string `xml:"loc"`
	LastMod    string `xml:"lastmod"`
	ChangeFreq string `xml:"changefreq"`
	Priority   string `xml:"priority"`
}

// ArticleLister は記事一覧を取得するインターフェース。
type ArticleLister interface {
	List(ctx context.Context, releasedOnly bool) ([]*model.Article, error)
}

// MetricsRecorder はサイトマップ再生成のメトリクスを記録するインターフェース。
type MetricsRecorder interface {
	RecordSitemapRegeneration(success bool, urls int, duration time.Duration)
}

// Generator はsitemap.xmlを全件再生成して固定パスへ書き出す。
// 書き出しは一時ファイルへの書き込みとリネームで行うため、読み手が途中までのファイルを見ることはない。
type Generator struct {
	articles ArticleLister
	baseURL  string
	path     string
	metrics  MetricsRecorder
	logger   *slog.Logger
	now      func() time.Time

	mu sync.Mutex
}

// NewGenerator はGeneratorを生成する。baseURLの末尾のスラッシュは取り除く。
func NewGenerator(articles ArticleLister, baseURL, path string, metrics MetricsRecorder, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		articles: articles,
		baseURL:  strings.TrimRight(baseURL, "/"),
		path:     path,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// Path はsitemap.xmlの書き出し先パスを返す。
func (g *Generator) Path() string {
	return g.path
}

// Build は公開記事からURLSetを組み立てる。
// 先頭はルートURL、続いて公開記事ごとに1エントリとなる。
func (g *Generator) Build(ctx context.Context) (*URLSet, error) {
	articles, err := g.articles.List(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("公開記事の取得に失敗しました: %w", err)
	}

	set := &URLSet{
		Xmlns: Namespace,
		URLs:  make([]URL, 0, len(articles)+1),
	}
	set.URLs = append(set.URLs, URL{
		Loc:        g.baseURL + "/",
		LastMod:    g.now().Format(dateLayout),
		ChangeFreq: rootChangeFreq,
		Priority:   rootPriority,
	})
	for _, a := range articles {
		if !a.Released {
			continue
		}
		set.URLs = append(set.URLs, URL{
			Loc:        fmt.Sprintf("%s/category/%s/%s", g.baseURL, a.Category, a.Slug),
			LastMod:    a.LastUpdate.Format(dateLayout),
			ChangeFreq: articleChangeFreq,
			Priority:   articlePriority,
		})
	}
	return set, nil
}

// Marshal はURLSetをXML宣言付きのバイト列に変換する。
func Marshal(set *URLSet) ([]byte, error) {
	body, err := xml.MarshalIndent(set, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("サイトマップのXML変換に失敗しました: %w", err)
	}
	out := make([]byte, 0, len(xml.Header)+len(body)+1)
	out = append(out, xml.Header...)
	out = append(out, body...)
	out = append(out, '\n')
	return out, nil
}

// Regenerate はサイトマップを再生成して書き出す。
// 同一プロセス内の同時再生成はミューテックスで直列化する。
func (g *Generator) Regenerate(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	start := time.Now()
	urls, err := g.regenerate(ctx)
	if g.metrics != nil {
		g.metrics.RecordSitemapRegeneration(err == nil, urls, time.Since(start))
	}
	if err != nil {
		return err
	}

	g.logger.InfoContext(ctx, "サイトマップを再生成しました",
		slog.String("path", g.path),
		slog.Int("urls", urls),
	)
	return nil
}

func (g *Generator) regenerate(ctx context.Context) (int, error) {
	set, err := g.Build(ctx)
	if err != nil {
		return 0, err
	}
	data, err := Marshal(set)
	if err != nil {
		return 0, err
	}
	if err := writeFileAtomic(g.path, data); err != nil {
		return 0, err
	}
	return len(set.URLs), nil
}

// ReadFile はsitemap.xmlの内容を返す。ファイルが存在しない場合は先に再生成する。
func (g *Generator) ReadFile(ctx context.Context) ([]byte, error) {
	data, err := os.ReadFile(g.path)
	if err == nil {
		return data, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("サイトマップの読み込みに失敗しました: %w", err)
	}

	if err := g.Regenerate(ctx); err != nil {
		return nil, err
	}
	data, err = os.ReadFile(g.path)
	if err != nil {
		return nil, fmt.Errorf("サイトマップの読み込みに失敗しました: %w", err)
	}
	return data, nil
}

// writeFileAtomic は同じディレクトリの一時ファイルに書き込んでからリネームする。
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("サイトマップ出力先ディレクトリの作成に失敗しました: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("一時ファイルの作成に失敗しました: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("一時ファイルへの書き込みに失敗しました: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("一時ファイルの同期に失敗しました: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("一時ファイルのクローズに失敗しました: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("一時ファイルの権限変更に失敗しました: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("サイトマップの置き換えに失敗しました: %w", err)
	}
	return nil
}
