// Package handler はHTTPハンドラーとルーティングを提供する。
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/trug/internal/auth"
	"github.com/hitoshi/trug/internal/middleware"
	"github.com/hitoshi/trug/internal/model"
	"github.com/hitoshi/trug/internal/session"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	OAuthEnabled() bool
	GetLoginURL(state string) (string, error)
	HandleCallback(ctx context.Context, code string, meta model.ClientMeta) (*model.User, *model.Session, error)
	Authenticate(ctx context.Context, email, password string, meta model.ClientMeta) (*model.User, *model.Session, error)
	Logout(ctx context.Context, sessionID string) error
}

// AttendanceSubmitter はログイン後に保留中の参加表明を再開するためのインターフェース。
type AttendanceSubmitter interface {
	Submit(ctx context.Context, user *model.User, meetupID int64, status model.AttendanceStatus) (*model.Attendance, error)
}

// AuthHandler はログイン・ログアウト関連のHTTPハンドラー。
type AuthHandler struct {
	service     AuthServiceInterface
	attendances AttendanceSubmitter
	cookies     *session.CookieCodec
	store       *session.Store
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, attendances AttendanceSubmitter, cookies *session.CookieCodec, store *session.Store) *AuthHandler {
	return &AuthHandler{
		service:     service,
		attendances: attendances,
		cookies:     cookies,
		store:       store,
	}
}

// Login はGitHub OAuthフローを開始する。
// GET /auth/github
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if !h.service.OAuthEnabled() {
		redirectWithAlert(w, r, h.store, "/", msgOAuthDisabled)
		return
	}

	state, err := auth.GenerateState()
	if err != nil {
		slog.Error("failed to generate oauth state", slog.String("error", err.Error()))
		redirectWithAlert(w, r, h.store, "/", msgOAuthFailed)
		return
	}

	// stateをWebセッションに保存（CSRF対策）
	if err := h.store.SetOAuthState(w, r, state); err != nil {
		slog.Error("failed to store oauth state", slog.String("error", err.Error()))
		redirectWithAlert(w, r, h.store, "/", msgOAuthFailed)
		return
	}

	loginURL, err := h.service.GetLoginURL(state)
	if err != nil {
		slog.Error("failed to build login url", slog.String("error", err.Error()))
		redirectWithAlert(w, r, h.store, "/", msgOAuthFailed)
		return
	}
	http.Redirect(w, r, loginURL, http.StatusFound)
}

// Callback はGitHubからのOAuthコールバックを処理する。
// GET|POST /auth/github/callback?code=xxx&state=yyy
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	// 1. stateの検証（一度きり）
	expected, err := h.store.PopOAuthState(w, r)
	if err != nil {
		slog.Error("failed to read oauth state", slog.String("error", err.Error()))
	}

	if providerErr := r.FormValue("error"); providerErr != "" {
		slog.Warn("oauth provider returned error",
			slog.String("error", providerErr),
			slog.String("error_description", r.FormValue("error_description")),
		)
		redirectWithAlert(w, r, h.store, "/", msgOAuthFailed)
		return
	}

	state := r.FormValue("state")
	if expected == "" || state != expected {
		slog.Warn("oauth state mismatch", slog.Bool("state_present", state != ""))
		redirectWithAlert(w, r, h.store, "/", msgOAuthFailed)
		return
	}

	// 2. 認可コードの取得
	code := r.FormValue("code")
	if code == "" {
		slog.Warn("oauth callback without code")
		redirectWithAlert(w, r, h.store, "/", msgOAuthFailed)
		return
	}

	// 3. 認証処理（コード交換 → identityのfind-or-create → セッション作成）
	user, sess, err := h.service.HandleCallback(r.Context(), code, middleware.ClientMetaFromRequest(r))
	if err != nil {
		var exErr *model.OAuthExchangeError
		if errors.As(err, &exErr) {
			slog.Warn("oauth exchange failed", slog.String("code", exErr.Code), slog.String("error", err.Error()))
		} else {
			slog.Error("oauth callback failed", slog.String("error", err.Error()))
		}
		redirectWithAlert(w, r, h.store, "/", msgOAuthFailed)
		return
	}

	// 4. セッションCookieを設定
	if !h.startSession(w, r, user, sess) {
		return
	}

	// 5. 保留中の参加表明があれば再開
	if pending, ok, err := h.store.PopPendingAttendance(w, r); err != nil {
		slog.Error("failed to read pending attendance", slog.String("error", err.Error()))
	} else if ok {
		h.resumeAttendance(w, r, user, pending)
		return
	}

	// 6. ログイン前にアクセスしたページへ戻す
	redirectWithNotice(w, r, h.store, h.popReturnTo(w, r), msgOAuthSucceeded)
}

// startSession はセッションCookieを設定し、自動ログイン抑止を解除する。
func (h *AuthHandler) startSession(w http.ResponseWriter, r *http.Request, user *model.User, sess *model.Session) bool {
	if err := h.cookies.Write(w, sess.ID); err != nil {
		slog.Error("failed to write session cookie", slog.String("error", err.Error()))
		redirectWithAlert(w, r, h.store, "/", msgGenericError)
		return false
	}
	if err := h.store.ClearSkipAutoLogin(w, r); err != nil {
		slog.Error("failed to clear skip_auto_login", slog.String("error", err.Error()))
	}
	slog.Info("session started", slog.String("user_id", user.ID))
	return true
}

func (h *AuthHandler) resumeAttendance(w http.ResponseWriter, r *http.Request, user *model.User, pending session.PendingAttendance) {
	status, err := model.ParseAttendanceStatus(pending.Status)
	if err == nil {
		_, err = h.attendances.Submit(r.Context(), user, pending.MeetupID, status)
	}
	if err != nil {
		redirectForAttendanceError(w, r, h.store, err)
		return
	}
	redirectWithNotice(w, r, h.store, "/", msgAttendanceSaved)
}

func (h *AuthHandler) popReturnTo(w http.ResponseWriter, r *http.Request) string {
	to, err := h.store.PopReturnTo(w, r)
	if err != nil {
		slog.Error("failed to read return_to", slog.String("error", err.Error()))
	}
	return localPath(to)
}

// Failure はプロバイダ側でログインが中断された場合の戻り先。
// GET /auth/failure
func (h *AuthHandler) Failure(w http.ResponseWriter, r *http.Request) {
	slog.Info("oauth login aborted", slog.String("message", r.URL.Query().Get("message")))
	redirectWithAlert(w, r, h.store, "/", msgOAuthFailed)
}

// CreateSession はメールアドレスとパスワードでログインする。
// POST /session
func (h *AuthHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	email := r.PostFormValue("email_address")
	if email == "" {
		email = r.PostFormValue("email")
	}
	password := r.PostFormValue("password")

	user, sess, err := h.service.Authenticate(r.Context(), email, password, middleware.ClientMetaFromRequest(r))
	if err != nil {
		if !errors.Is(err, auth.ErrInvalidCredentials) {
			slog.Error("password login failed", slog.String("error", err.Error()))
			redirectWithAlert(w, r, h.store, "/", msgGenericError)
			return
		}
		redirectWithAlert(w, r, h.store, "/", msgInvalidCredentials)
		return
	}

	if !h.startSession(w, r, user, sess) {
		return
	}
	redirectWithNotice(w, r, h.store, h.popReturnTo(w, r), msgLoginSucceeded)
}

// Logout は現在のセッションを破棄する。セッションがなくても成功する。
// DELETE /session, POST /session/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if sess := middleware.CurrentSessionFromContext(r.Context()); sess != nil {
		if err := h.service.Logout(r.Context(), sess.ID); err != nil {
			// 失敗してもCookieはクリアする
			slog.Error("failed to logout", slog.String("error", err.Error()))
		}
	}

	h.cookies.Clear(w)
	if err := h.store.SetSkipAutoLogin(w, r); err != nil {
		slog.Error("failed to set skip_auto_login", slog.String("error", err.Error()))
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

// redirectForAttendanceError は参加表明の失敗を利用者向けメッセージに変換する。
func redirectForAttendanceError(w http.ResponseWriter, r *http.Request, store *session.Store, err error) {
	var ve *model.ValidationError
	switch {
	case errors.As(err, &ve):
		redirectWithAlert(w, r, store, "/", ve.Message)
	case model.IsNotFound(err):
		redirectWithAlert(w, r, store, "/", msgMeetupNotFound)
	default:
		slog.Error("failed to submit attendance", slog.String("error", err.Error()))
		redirectWithAlert(w, r, store, "/", msgGenericError)
	}
}
