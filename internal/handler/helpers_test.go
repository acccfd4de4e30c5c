package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/trug/internal/attendance"
	"github.com/hitoshi/trug/internal/meetup"
	"github.com/hitoshi/trug/internal/middleware"
	"github.com/hitoshi/trug/internal/model"
	"github.com/hitoshi/trug/internal/session"
)

const testSecret = "handler-test-secret-0123456789abcdef0123"

func newTestCookies() *session.CookieCodec {
	return session.NewCookieCodec(testSecret, session.CookieOptions{MaxAge: 3600})
}

func newTestStore() *session.Store {
	return session.NewStore(testSecret, session.CookieOptions{})
}

// lastCookie はレスポンスで最後に設定された指定名のCookieを返す。
func lastCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	var found *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			found = c
		}
	}
	return found
}

// webSessionCookie はWebセッションに値を書き込んだ結果のCookieを返す。
func webSessionCookie(t *testing.T, store *session.Store, write func(w http.ResponseWriter, r *http.Request) error) *http.Cookie {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if err := write(rec, req); err != nil {
		t.Fatalf("failed to write web session: %v", err)
	}
	c := lastCookie(rec, session.StoreName)
	if c == nil {
		t.Fatal("web session cookie not set")
	}
	return c
}

// flashFrom はレスポンスのWebセッションCookieからフラッシュを読み出す。
func flashFrom(t *testing.T, store *session.Store, rec *httptest.ResponseRecorder) session.Flash {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if c := lastCookie(rec, session.StoreName); c != nil {
		req.AddCookie(c)
	}
	flash, err := store.PopFlash(httptest.NewRecorder(), req)
	if err != nil {
		t.Fatalf("PopFlash() error = %v", err)
	}
	return flash
}

// webSessionFrom はレスポンスのWebセッションCookieを載せたリクエストを返す。
func webSessionFrom(rec *httptest.ResponseRecorder) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if c := lastCookie(rec, session.StoreName); c != nil {
		req.AddCookie(c)
	}
	return req
}

func withUser(req *http.Request, user *model.User, sess *model.Session) *http.Request {
	return req.WithContext(middleware.ContextWithCurrent(req.Context(), user, sess))
}

func formRequest(method, target string, values url.Values) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func alice() *model.User {
	return &model.User{ID: "user-1", GitHubID: "1001", GitHubUsername: "alice", Email: "alice@example.com"}
}

var upcomingMeetup = &model.Meetup{
	ID:        7,
	Number:    42,
	Date:      time.Date(2030, 6, 12, 18, 0, 0, 0, time.UTC),
	EventType: model.EventTypeFormal,
}

// --- モック定義 ---

type mockAuthService struct {
	oauthDisabled    bool
	getLoginURLFn    func(state string) (string, error)
	handleCallbackFn func(ctx context.Context, code string, meta model.ClientMeta) (*model.User, *model.Session, error)
	authenticateFn   func(ctx context.Context, email, password string, meta model.ClientMeta) (*model.User, *model.Session, error)
	logoutFn         func(ctx context.Context, sessionID string) error
	callbackCalls    int
}

func (m *mockAuthService) OAuthEnabled() bool { return !m.oauthDisabled }

func (m *mockAuthService) GetLoginURL(state string) (string, error) {
	if m.getLoginURLFn != nil {
		return m.getLoginURLFn(state)
	}
	return "https://github.com/login/oauth/authorize?state=" + state, nil
}

func (m *mockAuthService) HandleCallback(ctx context.Context, code string, meta model.ClientMeta) (*model.User, *model.Session, error) {
	m.callbackCalls++
	if m.handleCallbackFn != nil {
		return m.handleCallbackFn(ctx, code, meta)
	}
	return alice(), &model.Session{ID: "session-abc", UserID: "user-1"}, nil
}

func (m *mockAuthService) Authenticate(ctx context.Context, email, password string, meta model.ClientMeta) (*model.User, *model.Session, error) {
	if m.authenticateFn != nil {
		return m.authenticateFn(ctx, email, password, meta)
	}
	return nil, nil, nil
}

func (m *mockAuthService) Logout(ctx context.Context, sessionID string) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, sessionID)
	}
	return nil
}

type submission struct {
	user     string
	meetupID int64
	status   model.AttendanceStatus
}

type mockAttendanceService struct {
	target      *model.Meetup
	targetErr   error
	submitErr   error
	overview    *attendance.Overview
	submissions []submission
}

func (m *mockAttendanceService) TargetMeetup(ctx context.Context) (*model.Meetup, error) {
	if m.targetErr != nil {
		return nil, m.targetErr
	}
	if m.target == nil {
		return nil, model.NewNotFoundError("meetup", "upcoming")
	}
	return m.target, nil
}

func (m *mockAttendanceService) Overview(ctx context.Context, user *model.User) (*attendance.Overview, error) {
	if m.overview == nil {
		return nil, model.NewNotFoundError("meetup", "upcoming")
	}
	return m.overview, nil
}

func (m *mockAttendanceService) Submit(ctx context.Context, user *model.User, meetupID int64, status model.AttendanceStatus) (*model.Attendance, error) {
	if m.submitErr != nil {
		return nil, m.submitErr
	}
	m.submissions = append(m.submissions, submission{user.GitHubUsername, meetupID, status})
	return &model.Attendance{ID: 1, MeetupID: meetupID, GitHubUsername: user.GitHubUsername, Status: status}, nil
}

type mockMeetupService struct {
	calls int
}

func (m *mockMeetupService) Home(ctx context.Context) (*meetup.HomeView, error) {
	m.calls++
	return &meetup.HomeView{RecentMeetups: []meetup.MeetupView{}}, nil
}
func (m *mockMeetupService) Archive(ctx context.Context) ([]meetup.MeetupView, error) {
	m.calls++
	return []meetup.MeetupView{{ID: 1, Number: 41, Date: "2024-05-15"}}, nil
}
func (m *mockMeetupService) Dashboard(ctx context.Context) (*meetup.DashboardView, error) {
	m.calls++
	return &meetup.DashboardView{MeetupsCount: 3, TalksCount: 5, RecentMeetups: []meetup.MeetupView{}}, nil
}
func (m *mockMeetupService) ListMeetups(ctx context.Context) ([]meetup.MeetupView, error) {
	m.calls++
	return []meetup.MeetupView{}, nil
}
func (m *mockMeetupService) ListTalks(ctx context.Context) ([]meetup.TalkView, error) {
	m.calls++
	return []meetup.TalkView{}, nil
}

type stubAdminChecker map[string]bool

func (s stubAdminChecker) IsAdmin(_ context.Context, user *model.User) bool {
	return user != nil && s[user.GitHubUsername]
}
