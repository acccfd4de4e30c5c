package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/trug/internal/session"
)

// 利用者に表示するフラッシュメッセージ
const (
	msgOAuthFailed        = "Nie udało się zalogować przez GitHub."
	msgOAuthSucceeded     = "Zalogowano przez GitHub!"
	msgOAuthDisabled      = "Logowanie przez GitHub jest obecnie niedostępne."
	msgLoginSucceeded     = "Zalogowano pomyślnie."
	msgInvalidCredentials = "Nieprawidłowy adres email lub hasło."
	msgAttendanceSaved    = "Dziękujemy! Twój udział został zarejestrowany."
	msgMeetupNotFound     = "Nie znaleziono spotkania."
	msgAccountDeleted     = "Twoje konto zostało usunięte."
	msgGenericError       = "Wystąpił błąd. Spróbuj ponownie."
)

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// redirectWithNotice は通知メッセージを積んでリダイレクトする。
func redirectWithNotice(w http.ResponseWriter, r *http.Request, store *session.Store, to, msg string) {
	if err := store.AddNotice(w, r, msg); err != nil {
		slog.Error("failed to add flash", slog.String("error", err.Error()))
	}
	http.Redirect(w, r, to, http.StatusFound)
}

// redirectWithAlert は警告メッセージを積んでリダイレクトする。
func redirectWithAlert(w http.ResponseWriter, r *http.Request, store *session.Store, to, msg string) {
	if err := store.AddAlert(w, r, msg); err != nil {
		slog.Error("failed to add flash", slog.String("error", err.Error()))
	}
	http.Redirect(w, r, to, http.StatusFound)
}

// localPath はサイト内の相対パスのみを受け付け、それ以外は"/"を返す。
func localPath(p string) string {
	if p == "" || !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") || strings.HasPrefix(p, "/\\") {
		return "/"
	}
	return p
}
