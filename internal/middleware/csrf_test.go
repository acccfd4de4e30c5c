package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/trug/internal/model"
)

func newCSRFHandler(t *testing.T, config CSRFConfig) (http.Handler, *bool) {
	t.Helper()
	called := false
	h := NewCSRFMiddleware(config)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))
	return h, &called
}

func TestCSRFMiddleware_SafeMethods_PassThroughAndIssueCookie(t *testing.T) {
	for _, method := range []string{http.MethodGet, http.MethodHead, http.MethodOptions} {
		t.Run(method, func(t *testing.T) {
			handler, called := newCSRFHandler(t, CSRFConfig{})

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest(method, "/", nil))

			if !*called {
				t.Fatal("handler should have been called")
			}
			c := findCookie(w, CSRFCookieName)
			if c == nil || len(c.Value) != 64 {
				t.Fatalf("expected 64-char csrf cookie, got %+v", c)
			}
			if c.HttpOnly {
				t.Error("csrf cookie must be readable by scripts")
			}
		})
	}
}

func TestCSRFMiddleware_ExistingCookieIsKept(t *testing.T) {
	handler, _ := newCSRFHandler(t, CSRFConfig{})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: CSRFCookieName, Value: "existing"})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if c := findCookie(w, CSRFCookieName); c != nil {
		t.Errorf("cookie should not be reissued, got %+v", c)
	}
}

func TestCSRFMiddleware_StateChangingRequests(t *testing.T) {
	tests := []struct {
		name     string
		cookie   string
		header   string
		form     string
		wantPass bool
	}{
		{"header matches", "tok", "tok", "", true},
		{"form field matches", "tok", "", "tok", true},
		{"missing cookie", "", "tok", "", false},
		{"missing submitted token", "tok", "", "", false},
		{"mismatch", "tok", "other", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, called := newCSRFHandler(t, CSRFConfig{})

			form := url.Values{"status": {"1"}}
			if tt.form != "" {
				form.Set(CSRFFormField, tt.form)
			}
			req := httptest.NewRequest(http.MethodPost, "/attendances", strings.NewReader(form.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: CSRFCookieName, Value: tt.cookie})
			}
			if tt.header != "" {
				req.Header.Set(CSRFHeaderName, tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if *called != tt.wantPass {
				t.Fatalf("handler called = %v, want %v", *called, tt.wantPass)
			}
			if tt.wantPass {
				return
			}
			if w.Code != http.StatusForbidden {
				t.Errorf("status = %d, want 403", w.Code)
			}
			var body ErrorResponseBody
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode: %v", err)
			}
			if body.Code != model.ErrCodeCSRFInvalid {
				t.Errorf("code = %q, want %q", body.Code, model.ErrCodeCSRFInvalid)
			}
		})
	}
}

func TestCSRFMiddleware_FormValueStillAvailableToHandler(t *testing.T) {
	var status string
	handler := NewCSRFMiddleware(CSRFConfig{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		status = r.FormValue("status")
	}))

	form := url.Values{"status": {"2"}, CSRFFormField: {"tok"}}
	req := httptest.NewRequest(http.MethodPost, "/attendances", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(&http.Cookie{Name: CSRFCookieName, Value: "tok"})
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if status != "2" {
		t.Errorf("status = %q, want 2", status)
	}
}

func TestCSRFMiddleware_ExemptPath(t *testing.T) {
	handler, called := newCSRFHandler(t, CSRFConfig{ExemptPaths: []string{"/auth/github/callback"}})

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/auth/github/callback", nil))

	if !*called {
		t.Error("exempt path should bypass token validation")
	}
}

func TestCSRFTokenHandler_WithChiRouter(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/csrf-token", NewCSRFTokenHandler(CSRFConfig{}).ServeHTTP)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/csrf-token", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	c := findCookie(w, CSRFCookieName)
	if body.Token == "" || c == nil || c.Value != body.Token {
		t.Errorf("token = %q, cookie = %+v", body.Token, c)
	}

	// 既存Cookieがある場合は同じ値を返す
	req := httptest.NewRequest(http.MethodGet, "/csrf-token", nil)
	req.AddCookie(&http.Cookie{Name: CSRFCookieName, Value: "existing"})
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	json.NewDecoder(w.Body).Decode(&body)
	if body.Token != "existing" {
		t.Errorf("token = %q, want existing", body.Token)
	}
}
