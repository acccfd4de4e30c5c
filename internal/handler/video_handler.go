package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/trug/internal/middleware"
)

// ThumbnailResolver は動画サムネイルURLを解決するインターフェース。
type ThumbnailResolver interface {
	ThumbnailURL(ctx context.Context, provider, videoID string) string
}

// VideoHandler は動画サムネイルのリダイレクトを行うHTTPハンドラー。
type VideoHandler struct {
	resolver ThumbnailResolver
}

// NewVideoHandler はVideoHandlerを生成する。
func NewVideoHandler(resolver ThumbnailResolver) *VideoHandler {
	return &VideoHandler{resolver: resolver}
}

// Thumbnail はプロバイダのサムネイル画像へリダイレクトする。
// 解決できない場合は404を返す。
// GET /video-thumbnails/{provider}/{id}
func (h *VideoHandler) Thumbnail(w http.ResponseWriter, r *http.Request) {
	thumb := h.resolver.ThumbnailURL(r.Context(), chi.URLParam(r, "provider"), chi.URLParam(r, "id"))
	if thumb == "" {
		middleware.WriteNotFound(w)
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=3600")
	http.Redirect(w, r, thumb, http.StatusFound)
}
