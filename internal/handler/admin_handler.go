package handler

import (
	"log/slog"
	"net/http"

	"github.com/hitoshi/trug/internal/meetup"
	"github.com/hitoshi/trug/internal/middleware"
)

// AdminHandler は管理画面用のHTTPハンドラー。
// ルーティング表でAccessAdminとして宣言し、ガードを通過した場合のみ呼ばれる。
type AdminHandler struct {
	service MeetupServiceInterface
}

// NewAdminHandler はAdminHandlerを生成する。
func NewAdminHandler(service MeetupServiceInterface) *AdminHandler {
	return &AdminHandler{service: service}
}

type adminMeetupsResponse struct {
	Meetups []meetup.MeetupView `json:"meetups"`
}

type adminTalksResponse struct {
	Talks []meetup.TalkView `json:"talks"`
}

// Dashboard は件数と直近のミートアップを返す。
// GET /admin
func (h *AdminHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Dashboard(r.Context())
	if err != nil {
		slog.Error("failed to load dashboard", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Meetups は全ミートアップを返す。
// GET /admin/meetups
func (h *AdminHandler) Meetups(w http.ResponseWriter, r *http.Request) {
	meetups, err := h.service.ListMeetups(r.Context())
	if err != nil {
		slog.Error("failed to list meetups", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}
	writeJSON(w, http.StatusOK, adminMeetupsResponse{Meetups: meetups})
}

// Talks は全発表を返す。
// GET /admin/talks
func (h *AdminHandler) Talks(w http.ResponseWriter, r *http.Request) {
	talks, err := h.service.ListTalks(r.Context())
	if err != nil {
		slog.Error("failed to list talks", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}
	writeJSON(w, http.StatusOK, adminTalksResponse{Talks: talks})
}
