package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/trug/internal/model"
	"github.com/hitoshi/trug/internal/session"
)

const (
	// LoginPath はログインの入口。
	LoginPath = "/auth/github"

	// AdminDeniedMessage は管理者権限がない場合のフラッシュメッセージ。
	AdminDeniedMessage = "Nie masz uprawnień administratora."
)

// AdminChecker は管理者判定のインターフェース。
type AdminChecker interface {
	IsAdmin(ctx context.Context, user *model.User) bool
}

// RequireAuthentication は未認証のリクエストをログイン入口へリダイレクトする。
// 要求されたURLはログイン後の戻り先としてWebセッションに保存する。
func RequireAuthentication(store *session.Store) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if CurrentUserFromContext(r.Context()) != nil {
				next.ServeHTTP(w, r)
				return
			}

			if err := store.SetReturnTo(w, r, r.URL.RequestURI()); err != nil {
				slog.Error("failed to store return_to", slog.String("error", err.Error()))
			}
			http.Redirect(w, r, LoginPath, http.StatusFound)
		})
	}
}

// RequireAdmin は管理者でない利用者をトップページへリダイレクトする。
// 403は返さない。RequireAuthenticationの後に配置する。
func RequireAdmin(checker AdminChecker, store *session.Store) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := CurrentUserFromContext(r.Context())
			if user != nil && checker.IsAdmin(r.Context(), user) {
				next.ServeHTTP(w, r)
				return
			}

			slog.Info("admin access denied",
				slog.String("path", r.URL.Path),
				slog.String("user_id", userID(user)),
			)
			if err := store.AddAlert(w, r, AdminDeniedMessage); err != nil {
				slog.Error("failed to add flash", slog.String("error", err.Error()))
			}
			http.Redirect(w, r, "/", http.StatusFound)
		})
	}
}

func userID(user *model.User) string {
	if user == nil {
		return ""
	}
	return user.ID
}
