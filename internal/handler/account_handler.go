package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/trug/internal/middleware"
	"github.com/hitoshi/trug/internal/session"
)

// AccountServiceInterface はアカウントハンドラーが必要とするサービスインターフェース。
type AccountServiceInterface interface {
	// DeleteAccount は利用者と全セッションを削除する。
	// 参加表明はgithub_usernameを残して利用者との紐付けのみ解除される。
	DeleteAccount(ctx context.Context, userID string) error
}

// AccountHandler はアカウント管理のHTTPハンドラー。
type AccountHandler struct {
	service AccountServiceInterface
	cookies *session.CookieCodec
	store   *session.Store
}

// NewAccountHandler はAccountHandlerを生成する。
func NewAccountHandler(service AccountServiceInterface, cookies *session.CookieCodec, store *session.Store) *AccountHandler {
	return &AccountHandler{service: service, cookies: cookies, store: store}
}

// Delete はログイン中の利用者のアカウントを削除する。
// DELETE /account
func (h *AccountHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := middleware.CurrentUserFromContext(r.Context())
	if user == nil {
		// RequireAuthenticationの後に配置されるため通常は到達しない
		http.Redirect(w, r, middleware.LoginPath, http.StatusFound)
		return
	}

	if err := h.service.DeleteAccount(r.Context(), user.ID); err != nil {
		slog.Error("failed to delete account",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		redirectWithAlert(w, r, h.store, "/", msgGenericError)
		return
	}

	h.cookies.Clear(w)
	if err := h.store.SetSkipAutoLogin(w, r); err != nil {
		slog.Error("failed to set skip_auto_login", slog.String("error", err.Error()))
	}
	redirectWithNotice(w, r, h.store, "/", msgAccountDeleted)
}
