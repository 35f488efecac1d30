// Package media はアップロード画像の保存と一覧を提供する。
// ファイル名には YYYYMMDDHHMMSS_ の接頭辞を付け、名前の降順が新しい順になるようにする。
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/hitoshi/blogman/internal/metrics"
	"github.com/hitoshi/blogman/internal/model"
)

// timestampLayout はファイル名の接頭辞に使う時刻フォーマット。
const timestampLayout = "20060102150405"

// PublicPrefix は保存した画像を配信するURLパス。
const PublicPrefix = "/static/images/"

// importTimeout はリモート画像取得のタイムアウト。
const importTimeout = 15 * time.Second

// AllowedExtensions はアップロードを受け付ける画像拡張子。
var AllowedExtensions = []string{".png", ".jpg", ".jpeg", ".bmp", ".gif"}

// SSRFValidator はSSRF検証のインターフェース。
type SSRFValidator interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration) *http.Client
}

// MetricsRecorder はアップロード結果を記録するインターフェース。
type MetricsRecorder interface {
	RecordMediaUpload(result string)
}

// Image は一覧表示用の画像情報。
type Image struct {
	Name string
	URL  string
}

// Store は画像の保存と一覧を行う。書き込みはWriterに委ねる。
type Store struct {
	dir     string
	maxSize int64
	writer  *Writer
	guard   SSRFValidator
	client  *http.Client
	metrics MetricsRecorder
	logger  *slog.Logger
	now     func() time.Time
}

// NewStore はStoreを生成する。guardがnilの場合はURLからの取り込みを無効にする。
func NewStore(dir string, maxSize int64, writer *Writer, guard SSRFValidator, metrics MetricsRecorder, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		dir:     dir,
		maxSize: maxSize,
		writer:  writer,
		guard:   guard,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
	if guard != nil {
		s.client = guard.NewSafeClient(importTimeout)
	}
	return s
}

// Dir は保存先ディレクトリを返す。
func (s *Store) Dir() string {
	return s.dir
}

// Save はアップロードされたファイルの保存を依頼し、保存予定のファイル名を返す。
// 書き込みはバックグラウンドで行われる。
func (s *Store) Save(ctx context.Context, filename string, r io.Reader) (string, error) {
	name, err := s.save(filename, r)
	s.record(err)
	return name, err
}

func (s *Store) save(filename string, r io.Reader) (string, error) {
	base, err := sanitizeFilename(filename)
	if err != nil {
		return "", err
	}
	data, err := readLimited(r, s.maxSize)
	if err != nil {
		return "", err
	}
	return s.submit(base, data)
}

// Import は外部URLの画像を取得して保存を依頼する。
// URLはSSRF検証を通過したものに限り、レスポンスはContent-Typeがimage/*のもののみ受け付ける。
func (s *Store) Import(ctx context.Context, rawURL string) (string, error) {
	name, err := s.importURL(ctx, rawURL)
	s.record(err)
	return name, err
}

func (s *Store) importURL(ctx context.Context, rawURL string) (string, error) {
	if s.guard == nil {
		return "", model.NewInvalidMediaError("URLからの取り込みは無効です")
	}
	if err := s.guard.ValidateURL(rawURL); err != nil {
		s.logger.WarnContext(ctx, "SSRF検証により取り込みを拒否しました",
			slog.String("url", rawURL),
			slog.String("error", err.Error()),
		)
		return "", model.NewSSRFBlockedError()
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", model.NewInvalidInputError("URLの形式が正しくありません")
	}
	base, err := sanitizeFilename(path.Base(parsed.Path))
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", model.NewFetchFailedError(err.Error())
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return "", model.NewFetchFailedError(err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", model.NewFetchFailedError(fmt.Sprintf("HTTP %d", resp.StatusCode))
	}
	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if !strings.HasPrefix(mediaType, "image/") {
		return "", model.NewInvalidMediaError(fmt.Sprintf("画像ではありません（%s）", mediaType))
	}

	data, err := readLimited(resp.Body, s.maxSize)
	if err != nil {
		return "", err
	}
	return s.submit(base, data)
}

func (s *Store) submit(base string, data []byte) (string, error) {
	name := s.now().Format(timestampLayout) + "_" + base
	if err := s.writer.Submit(name, data); err != nil {
		return "", fmt.Errorf("画像の保存依頼に失敗しました: %w", err)
	}
	return name, nil
}

// List は保存済みの画像を新しい順（ファイル名の降順）で返す。
// ディレクトリが存在しない場合は空の一覧を返す。
func (s *Store) List() ([]Image, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []Image{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("画像一覧の取得に失敗しました: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !isAllowedExtension(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))

	images := make([]Image, len(names))
	for i, name := range names {
		images[i] = Image{Name: name, URL: PublicPrefix + url.PathEscape(name)}
	}
	return images, nil
}

func (s *Store) record(err error) {
	if s.metrics == nil {
		return
	}
	if err != nil {
		s.metrics.RecordMediaUpload(metrics.ResultFailure)
		return
	}
	s.metrics.RecordMediaUpload(metrics.ResultSuccess)
}

// sanitizeFilename はパス要素を取り除き、画像拡張子かどうかを検証する。
func sanitizeFilename(filename string) (string, error) {
	base := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	base = strings.TrimSpace(base)
	if base == "" || base == "." || base == "/" || strings.HasPrefix(base, ".") {
		return "", model.NewInvalidMediaError("ファイル名が不正です")
	}
	if !isAllowedExtension(base) {
		return "", model.NewInvalidMediaError(fmt.Sprintf("対応していない拡張子です（%s）", filepath.Ext(base)))
	}
	return base, nil
}

func isAllowedExtension(name string) bool {
	return slices.Contains(AllowedExtensions, strings.ToLower(filepath.Ext(name)))
}

// readLimited はmaxSizeバイトまで読み込む。超過した場合はMEDIA_TOO_LARGEを返す。
func readLimited(r io.Reader, maxSize int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("アップロードデータの読み込みに失敗しました: %w", err)
	}
	if int64(len(data)) > maxSize {
		return nil, model.NewMediaTooLargeError(maxSize)
	}
	if len(data) == 0 {
		return nil, model.NewInvalidMediaError("ファイルが空です")
	}
	return data, nil
}
