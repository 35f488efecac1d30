package media

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestWriter_SubmitAndClose(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, 2, nil)

	if err := w.Submit("20240101000000_a.png", []byte("png")); err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	w.Close()

	data, err := os.ReadFile(filepath.Join(dir, "20240101000000_a.png"))
	if err != nil {
		t.Fatalf("書き込まれたファイルが読めません: %v", err)
	}
	if string(data) != "png" {
		t.Errorf("content = %q, want %q", data, "png")
	}
}

func TestWriter_SameNameGetsSuffix(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, 1, nil)

	var mu sync.Mutex
	var written []string
	w.onWrite = func(name string, err error) {
		if err != nil {
			t.Errorf("write failed: %v", err)
			return
		}
		mu.Lock()
		written = append(written, name)
		mu.Unlock()
	}

	for range 3 {
		if err := w.Submit("same.gif", []byte("gif")); err != nil {
			t.Fatalf("Submit returned error: %v", err)
		}
	}
	w.Close()

	for _, name := range []string{"same.gif", "same_1.gif", "same_2.gif"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s が存在しません: %v", name, err)
		}
	}
	if len(written) != 3 {
		t.Errorf("onWrite calls = %d, want 3", len(written))
	}
}

func TestWriter_SubmitAfterClose(t *testing.T) {
	w := NewWriter(t.TempDir(), 1, nil)
	w.Close()

	if err := w.Submit("a.png", []byte("x")); !errors.Is(err, ErrWriterClosed) {
		t.Errorf("err = %v, want ErrWriterClosed", err)
	}
}

func TestWriter_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "static", "images")
	w := NewWriter(dir, 0, nil)

	if err := w.Submit("b.jpg", []byte("jpg")); err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	w.Close()

	if _, err := os.Stat(filepath.Join(dir, "b.jpg")); err != nil {
		t.Errorf("ファイルが作成されていません: %v", err)
	}
}
