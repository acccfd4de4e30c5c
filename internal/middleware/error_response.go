package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/trug/internal/model"
)

// ErrorResponseBody はJSONエラーレスポンスの統一フォーマット。
// 原因カテゴリと対処方法を含む。
type ErrorResponseBody struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、利用者には一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     model.ErrCodeInternal,
		Message:  "Wystąpił błąd. Spróbuj ponownie.",
		Category: "system",
		Action:   "Spróbuj ponownie za chwilę.",
	})
}

// WriteForbidden はリクエスト拒否の統一レスポンスを書き込む。
func WriteForbidden(w http.ResponseWriter, code, message string) {
	WriteErrorResponse(w, http.StatusForbidden, &model.APIError{
		Code:     code,
		Message:  message,
		Category: "security",
		Action:   "Odśwież stronę i spróbuj ponownie.",
	})
}

// WriteNotFound はプレーンテキストの404を書き込む。
func WriteNotFound(w http.ResponseWriter) {
	http.Error(w, "Not Found", http.StatusNotFound)
}
