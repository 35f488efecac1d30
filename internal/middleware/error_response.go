package middleware

import (
	"net/http"

	"github.com/go-chi/render"

	"github.com/hitoshi/blogman/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
// 原因カテゴリと対処方法を含む。
type ErrorResponseBody struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
func WriteErrorResponse(w http.ResponseWriter, r *http.Request, statusCode int, apiErr *model.APIError) {
	render.Status(r, statusCode)
	render.JSON(w, r, ErrorResponseBody{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter, r *http.Request) {
	WriteErrorResponse(w, r, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// StatusForCode はエラーコードに対応するHTTPステータスを返す。
func StatusForCode(code string) int {
	switch code {
	case model.ErrCodeArticleNotFound, model.ErrCodeCategoryNotFound,
		model.ErrCodeTagNotFound, model.ErrCodeUserNotFound:
		return http.StatusNotFound
	case model.ErrCodeSlugConflict:
		return http.StatusConflict
	case model.ErrCodeMediaTooLarge:
		return http.StatusRequestEntityTooLarge
	case model.ErrCodeSSRFBlocked:
		return http.StatusForbidden
	case model.ErrCodeFetchFailed:
		return http.StatusBadGateway
	case "":
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}
