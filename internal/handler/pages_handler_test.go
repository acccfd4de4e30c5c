package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/trug/internal/model"
)

func TestPagesHandler_Home(t *testing.T) {
	tests := []struct {
		name      string
		user      *model.User
		wantAdmin bool
	}{
		{name: "未ログイン", user: nil},
		{name: "一般ユーザー", user: alice()},
		{name: "管理者", user: &model.User{ID: "user-9", GitHubID: "9", GitHubUsername: "admin"}, wantAdmin: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newTestStore()
			h := NewPagesHandler(&mockMeetupService{}, stubAdminChecker{"admin": true}, store)

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.AddCookie(webSessionCookie(t, store, func(w http.ResponseWriter, r *http.Request) error {
				return store.AddNotice(w, r, msgLoginSucceeded)
			}))
			if tt.user != nil {
				req = withUser(req, tt.user, &model.Session{ID: "s1", UserID: tt.user.ID})
			}
			rec := httptest.NewRecorder()
			h.Home(rec, req)

			if rec.Code != http.StatusOK {
				t.Fatalf("expected status 200, got %d", rec.Code)
			}
			var resp homeResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if tt.user == nil {
				if resp.CurrentUser != nil {
					t.Errorf("expected no current_user, got %+v", resp.CurrentUser)
				}
			} else if resp.CurrentUser == nil || resp.CurrentUser.ID != tt.user.ID || resp.CurrentUser.Admin != tt.wantAdmin {
				t.Errorf("unexpected current_user: %+v", resp.CurrentUser)
			}
			if resp.Flash.Notice != msgLoginSucceeded {
				t.Errorf("expected notice %q, got %q", msgLoginSucceeded, resp.Flash.Notice)
			}
			if got := flashFrom(t, store, rec); got.Notice != "" {
				t.Errorf("expected flash to be consumed, got %+v", got)
			}
		})
	}
}

func TestPagesHandler_Archive(t *testing.T) {
	h := NewPagesHandler(&mockMeetupService{}, stubAdminChecker{}, newTestStore())

	rec := httptest.NewRecorder()
	h.Archive(rec, httptest.NewRequest(http.MethodGet, "/archive", nil))

	var resp archiveResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Meetups) != 1 || resp.Meetups[0].Number != 41 {
		t.Errorf("unexpected archive: %+v", resp.Meetups)
	}
}

func TestAdminHandler_Dashboard(t *testing.T) {
	h := NewAdminHandler(&mockMeetupService{})

	rec := httptest.NewRecorder()
	h.Dashboard(rec, httptest.NewRequest(http.MethodGet, "/admin", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	var resp map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["meetups_count"] != float64(3) || resp["talks_count"] != float64(5) {
		t.Errorf("unexpected counts: %v", resp)
	}
}
