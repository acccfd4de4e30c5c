package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) PingContext(ctx context.Context) error { return f(ctx) }

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name     string
		ping     pingFunc
		wantCode int
		wantBody string
	}{
		{name: "DB到達可能", ping: func(context.Context) error { return nil }, wantCode: http.StatusOK, wantBody: "ok"},
		{name: "DB到達不可", ping: func(context.Context) error { return errors.New("connection refused") }, wantCode: http.StatusServiceUnavailable, wantBody: "unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			NewHealthHandler(tt.ping).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/up", nil))

			if rec.Code != tt.wantCode {
				t.Errorf("expected status %d, got %d", tt.wantCode, rec.Code)
			}
			if rec.Body.String() != tt.wantBody {
				t.Errorf("expected body %q, got %q", tt.wantBody, rec.Body.String())
			}
		})
	}
}

func TestRouter_HealthCheckSkipsSession(t *testing.T) {
	resolver := stubResolver{}
	h := NewRouter(&RouterDeps{
		Cookies:         newTestCookies(),
		Store:           newTestStore(),
		SessionResolver: resolver,
		AdminChecker:    stubAdminChecker{},
		HealthChecker:   pingFunc(func(context.Context) error { return nil }),
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/up", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	for _, c := range rec.Result().Cookies() {
		t.Errorf("expected no cookies on /up, got %s", c.Name)
	}
}
