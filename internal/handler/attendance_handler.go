package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/hitoshi/trug/internal/attendance"
	"github.com/hitoshi/trug/internal/meetup"
	"github.com/hitoshi/trug/internal/middleware"
	"github.com/hitoshi/trug/internal/model"
	"github.com/hitoshi/trug/internal/session"
)

// AttendanceServiceInterface は参加表明ハンドラーが必要とするサービスインターフェース。
type AttendanceServiceInterface interface {
	AttendanceSubmitter
	TargetMeetup(ctx context.Context) (*model.Meetup, error)
	Overview(ctx context.Context, user *model.User) (*attendance.Overview, error)
}

// AttendanceHandler は参加表明（RSVP）のHTTPハンドラー。
type AttendanceHandler struct {
	service AttendanceServiceInterface
	store   *session.Store
}

// NewAttendanceHandler はAttendanceHandlerを生成する。
func NewAttendanceHandler(service AttendanceServiceInterface, store *session.Store) *AttendanceHandler {
	return &AttendanceHandler{service: service, store: store}
}

type attendanceMeetupResponse struct {
	ID        int64  `json:"id"`
	Number    int    `json:"number,omitempty"`
	Date      string `json:"date"`
	EventType string `json:"event_type"`
}

type attendanceStatusOption struct {
	Value int    `json:"value"`
	Name  string `json:"name"`
	Label string `json:"label"`
}

type attendanceFormResponse struct {
	Meetup    attendanceMeetupResponse `json:"meetup"`
	Counts    map[string]int           `json:"counts"`
	MyStatus  *string                  `json:"my_status"`
	Statuses  []attendanceStatusOption `json:"statuses"`
	SubmitURL string                   `json:"submit_url"`
}

var statusOptions = []model.AttendanceStatus{model.AttendanceYes, model.AttendanceMaybe, model.AttendanceNo}

// New は参加表明フォームに必要な情報を返す。
// GET /attendances/new
func (h *AttendanceHandler) New(w http.ResponseWriter, r *http.Request) {
	user := middleware.CurrentUserFromContext(r.Context())

	ov, err := h.service.Overview(r.Context(), user)
	if err != nil {
		if model.IsNotFound(err) {
			middleware.WriteNotFound(w)
			return
		}
		slog.Error("failed to load attendance overview", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	resp := attendanceFormResponse{
		Meetup: attendanceMeetupResponse{
			ID:        ov.Meetup.ID,
			Number:    ov.Meetup.Number,
			Date:      ov.Meetup.Date.Format(meetup.DateLayout),
			EventType: string(ov.Meetup.EventType),
		},
		Counts:    make(map[string]int, len(statusOptions)),
		SubmitURL: "/attendances",
	}
	for _, s := range statusOptions {
		resp.Counts[s.String()] = ov.Counts[s]
		resp.Statuses = append(resp.Statuses, attendanceStatusOption{Value: int(s), Name: s.String(), Label: s.Label()})
	}
	if ov.Mine != nil {
		name := ov.Mine.Status.String()
		resp.MyStatus = &name
	}
	writeJSON(w, http.StatusOK, resp)
}

// Create は参加表明を登録する。
// 未ログインの場合は送信内容をWebセッションに保留し、GitHubログインへ誘導する。
// POST /attendances
func (h *AttendanceHandler) Create(w http.ResponseWriter, r *http.Request) {
	// 1. 対象ミートアップの決定
	target, err := h.service.TargetMeetup(r.Context())
	if err != nil {
		if model.IsNotFound(err) {
			middleware.WriteNotFound(w)
			return
		}
		slog.Error("failed to find target meetup", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	// 2. 状態の解析（未指定は「参加」）
	status, err := model.ParseAttendanceStatus(r.PostFormValue("status"))
	if err != nil {
		var ve *model.ValidationError
		if errors.As(err, &ve) {
			redirectWithAlert(w, r, h.store, "/", ve.Message)
			return
		}
		redirectWithAlert(w, r, h.store, "/", msgGenericError)
		return
	}

	// 3. 未ログインの場合は保留してOAuthへ
	user := middleware.CurrentUserFromContext(r.Context())
	if user == nil {
		pending := session.PendingAttendance{MeetupID: target.ID, Status: strconv.Itoa(int(status))}
		if err := h.store.SetPendingAttendance(w, r, pending); err != nil {
			slog.Error("failed to store pending attendance", slog.String("error", err.Error()))
			redirectWithAlert(w, r, h.store, "/", msgGenericError)
			return
		}
		http.Redirect(w, r, middleware.LoginPath, http.StatusFound)
		return
	}

	// 4. 登録
	if _, err := h.service.Submit(r.Context(), user, target.ID, status); err != nil {
		redirectForAttendanceError(w, r, h.store, err)
		return
	}
	redirectWithNotice(w, r, h.store, "/", msgAttendanceSaved)
}
