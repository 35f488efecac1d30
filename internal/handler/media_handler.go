package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/hitoshi/blogman/internal/model"
	"github.com/hitoshi/blogman/internal/view"
)

const mediaPath = adminPath + "/media"

// multipartMemory はmultipartフォームをメモリに保持する上限。超えた分は一時ファイルに書かれる。
const multipartMemory = 8 << 20

// MediaHandler は画像管理画面のHTTPハンドラー。
type MediaHandler struct {
	base
	store MediaStore
}

// NewMediaHandler はMediaHandlerを生成する。
func NewMediaHandler(store MediaStore, pages PageRenderer, siteName string, logger *slog.Logger) *MediaHandler {
	return &MediaHandler{base: newBase(pages, siteName, logger), store: store}
}

// Page はアップロード済み画像の一覧を新しい順に表示する。
// GET /admin/media
func (h *MediaHandler) Page(w http.ResponseWriter, r *http.Request) {
	images, err := h.store.List()
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	p := h.page(r, "メディア")
	if name := r.URL.Query().Get("uploaded"); name != "" {
		p.Message = name + " をアップロードしました。"
	}
	h.view.Render(w, http.StatusOK, view.PageMedia, view.MediaData{Page: p, Images: images})
}

// Upload はfileフィールドの画像を保存する。fileがなくurlがある場合はURLから取り込む。
// 書き込みはバックグラウンドで行われるため、直後の一覧に反映されない場合がある。
// POST /admin/upload
func (h *MediaHandler) Upload(w http.ResponseWriter, r *http.Request) {
	var (
		name string
		err  error
	)

	file, header, ferr := r.FormFile("file")
	switch {
	case ferr == nil:
		defer file.Close()
		name, err = h.store.Save(r.Context(), header.Filename, file)
	case errors.Is(ferr, http.ErrMissingFile) || errors.Is(ferr, http.ErrNotMultipart):
		rawURL := strings.TrimSpace(r.FormValue("url"))
		if rawURL == "" {
			err = model.NewInvalidMediaError("画像ファイルまたはURLを指定してください")
			break
		}
		name, err = h.store.Import(r.Context(), rawURL)
	default:
		var maxErr *http.MaxBytesError
		if errors.As(ferr, &maxErr) {
			err = model.NewMediaTooLargeError(maxErr.Limit)
			break
		}
		err = model.NewInvalidMediaError("フォームの解析に失敗しました")
	}

	if err != nil {
		h.redirectWithError(w, r, mediaPath, err)
		return
	}
	http.Redirect(w, r, mediaPath+"?uploaded="+url.QueryEscape(name), http.StatusSeeOther)
}
