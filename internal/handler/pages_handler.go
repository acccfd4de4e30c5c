package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/trug/internal/meetup"
	"github.com/hitoshi/trug/internal/middleware"
	"github.com/hitoshi/trug/internal/session"
)

// MeetupServiceInterface は一覧系ハンドラーが必要とするサービスインターフェース。
type MeetupServiceInterface interface {
	Home(ctx context.Context) (*meetup.HomeView, error)
	Archive(ctx context.Context) ([]meetup.MeetupView, error)
	Dashboard(ctx context.Context) (*meetup.DashboardView, error)
	ListMeetups(ctx context.Context) ([]meetup.MeetupView, error)
	ListTalks(ctx context.Context) ([]meetup.TalkView, error)
}

// PagesHandler は公開ページ（トップ、アーカイブ）のHTTPハンドラー。
type PagesHandler struct {
	service MeetupServiceInterface
	admin   middleware.AdminChecker
	store   *session.Store
}

// NewPagesHandler はPagesHandlerを生成する。
func NewPagesHandler(service MeetupServiceInterface, admin middleware.AdminChecker, store *session.Store) *PagesHandler {
	return &PagesHandler{service: service, admin: admin, store: store}
}

type currentUserResponse struct {
	ID    string `json:"id"`
	Login string `json:"login,omitempty"`
	Email string `json:"email"`
	Admin bool   `json:"admin"`
}

type homeResponse struct {
	*meetup.HomeView
	CurrentUser *currentUserResponse `json:"current_user"`
	Flash       session.Flash        `json:"flash"`
}

type archiveResponse struct {
	Meetups []meetup.MeetupView `json:"meetups"`
}

// Home はトップページの情報を返す。
// GET /
func (h *PagesHandler) Home(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Home(r.Context())
	if err != nil {
		slog.Error("failed to load home", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	resp := homeResponse{HomeView: view}
	if user := middleware.CurrentUserFromContext(r.Context()); user != nil {
		resp.CurrentUser = &currentUserResponse{
			ID:    user.ID,
			Login: user.GitHubUsername,
			Email: user.Email,
			Admin: h.admin.IsAdmin(r.Context(), user),
		}
	}

	// フラッシュは表示時に消費する（Set-Cookieをボディより先に書く）
	flash, err := h.store.PopFlash(w, r)
	if err != nil {
		slog.Error("failed to read flash", slog.String("error", err.Error()))
	}
	resp.Flash = flash

	writeJSON(w, http.StatusOK, resp)
}

// Archive は過去の通常回を発表付きで返す。
// GET /archive
func (h *PagesHandler) Archive(w http.ResponseWriter, r *http.Request) {
	meetups, err := h.service.Archive(r.Context())
	if err != nil {
		slog.Error("failed to load archive", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}
	writeJSON(w, http.StatusOK, archiveResponse{Meetups: meetups})
}
