package media

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// maxNameAttempts は同名ファイルが存在する場合に連番を試す上限。
const maxNameAttempts = 100

// Writer はアップロードされた画像をバックグラウンドでディスクへ書き出す。
// 同時書き込み数はsemaphoreで制限し、Closeで未完了の書き込みを待つ。
type Writer struct {
	dir     string
	logger  *slog.Logger
	sem     chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	closed  bool
	onWrite func(name string, err error)
}

// NewWriter はWriterを生成する。maxConcurrencyが0以下の場合は4を使う。
func NewWriter(dir string, maxConcurrency int, logger *slog.Logger) *Writer {
	if maxConcurrency <= 0 {
		maxConcurrency = 4
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{
		dir:    dir,
		logger: logger,
		sem:    make(chan struct{}, maxConcurrency),
	}
}

// ErrWriterClosed はClose後に書き込みを依頼した場合に返す。
var ErrWriterClosed = errors.New("media writer is closed")

// Submit は書き込みを非同期に依頼する。結果はログに記録する。
func (w *Writer) Submit(name string, data []byte) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrWriterClosed
	}
	w.wg.Add(1)
	w.mu.Unlock()

	go func() {
		defer w.wg.Done()
		w.sem <- struct{}{}
		defer func() { <-w.sem }()

		written, err := w.write(name, data)
		if err != nil {
			w.logger.Error("画像の書き込みに失敗しました",
				slog.String("name", name),
				slog.String("error", err.Error()),
			)
		} else {
			w.logger.Info("画像を保存しました",
				slog.String("name", written),
				slog.Int("bytes", len(data)),
			)
		}
		if w.onWrite != nil {
			w.onWrite(written, err)
		}
	}()
	return nil
}

// Close は新規の依頼を受け付けないようにし、実行中の書き込みの完了を待つ。
func (w *Writer) Close() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
	w.wg.Wait()
}

// write は既存ファイルを上書きしないようO_EXCLで作成する。
// 同名が存在する場合は拡張子の前に _1, _2 ... を付ける。
func (w *Writer) write(name string, data []byte) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("保存先ディレクトリの作成に失敗しました: %w", err)
	}

	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	candidate := name
	for i := 1; i <= maxNameAttempts; i++ {
		f, err := os.OpenFile(filepath.Join(w.dir, candidate), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			candidate = fmt.Sprintf("%s_%d%s", stem, i, ext)
			continue
		}
		if err != nil {
			return "", fmt.Errorf("ファイルの作成に失敗しました: %w", err)
		}
		if _, err := f.Write(data); err != nil {
			f.Close()
			os.Remove(f.Name())
			return "", fmt.Errorf("ファイルへの書き込みに失敗しました: %w", err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("ファイルのクローズに失敗しました: %w", err)
		}
		return candidate, nil
	}
	return "", fmt.Errorf("空きファイル名が見つかりません: %s", name)
}
