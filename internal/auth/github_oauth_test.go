package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/trug/internal/model"
)

// newGitHubTestServer はトークンエンドポイントとAPIを1つのサーバーで模擬する。
func newGitHubTestServer(t *testing.T, token http.HandlerFunc, user http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/login/oauth/access_token", token)
	mux.HandleFunc("/api/user", user)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestProvider(t *testing.T, srv *httptest.Server) *GitHubOAuthProvider {
	t.Helper()
	p, err := NewGitHubOAuthProvider(GitHubOAuthConfig{
		ClientID:     "test-client-id",
		ClientSecret: "test-client-secret",
		RedirectURL:  "http://localhost:8080/auth/github/callback",
		Timeout:      2 * time.Second,
		AuthURL:      srv.URL + "/login/oauth/authorize",
		TokenURL:     srv.URL + "/login/oauth/access_token",
		APIBaseURL:   srv.URL + "/api",
	})
	if err != nil {
		t.Fatalf("NewGitHubOAuthProvider() error = %v", err)
	}
	return p
}

func okToken(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"access_token": "gho_test",
		"token_type":   "bearer",
		"scope":        "read:user",
	})
}

func TestGitHubOAuthProvider_GetLoginURL_ContainsRequiredParams(t *testing.T) {
	p, err := NewGitHubOAuthProvider(GitHubOAuthConfig{
		ClientID:    "test-client-id",
		RedirectURL: "http://localhost:8080/auth/github/callback",
	})
	if err != nil {
		t.Fatalf("NewGitHubOAuthProvider() error = %v", err)
	}

	url := p.GetLoginURL("test-state-value")

	tests := []struct {
		name     string
		contains string
	}{
		{"endpoint", "https://github.com/login/oauth/authorize"},
		{"client_id", "client_id=test-client-id"},
		{"redirect_uri", "redirect_uri="},
		{"state", "state=test-state-value"},
		{"response_type", "response_type=code"},
		{"scope", "scope=read%3Auser"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !strings.Contains(url, tt.contains) {
				t.Errorf("URL should contain %q, got %q", tt.contains, url)
			}
		})
	}
}

func TestGitHubOAuthProvider_ExchangeCode_Success(t *testing.T) {
	srv := newGitHubTestServer(t,
		func(w http.ResponseWriter, r *http.Request) {
			if err := r.ParseForm(); err != nil {
				t.Errorf("ParseForm() error = %v", err)
			}
			if r.PostForm.Get("code") != "auth-code" {
				t.Errorf("code = %q, want auth-code", r.PostForm.Get("code"))
			}
			if r.PostForm.Get("client_secret") != "test-client-secret" {
				t.Error("client_secret should be sent in the request body")
			}
			okToken(w, r)
		},
		func(w http.ResponseWriter, r *http.Request) {
			if got := r.Header.Get("Authorization"); got != "Bearer gho_test" {
				t.Errorf("Authorization = %q, want Bearer gho_test", got)
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"id": 583231, "login": "octocat", "email": "octocat@github.com"}`))
		},
	)

	profile, err := newTestProvider(t, srv).ExchangeCode(context.Background(), "auth-code")
	if err != nil {
		t.Fatalf("ExchangeCode() error = %v", err)
	}
	if profile.ID != "583231" {
		t.Errorf("ID = %q, want 583231", profile.ID)
	}
	if profile.Login != "octocat" {
		t.Errorf("Login = %q, want octocat", profile.Login)
	}
	if profile.Email != "octocat@github.com" {
		t.Errorf("Email = %q", profile.Email)
	}
}

func TestGitHubOAuthProvider_ExchangeCode_PrivateEmail(t *testing.T) {
	srv := newGitHubTestServer(t, okToken, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": 1, "login": "hidden", "email": null}`))
	})

	profile, err := newTestProvider(t, srv).ExchangeCode(context.Background(), "code")
	if err != nil {
		t.Fatalf("ExchangeCode() error = %v", err)
	}
	if profile.Email != "" {
		t.Errorf("Email = %q, want empty", profile.Email)
	}
}

func TestGitHubOAuthProvider_ExchangeCode_TokenError(t *testing.T) {
	srv := newGitHubTestServer(t,
		func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error": "bad_verification_code", "error_description": "The code passed is incorrect or expired."}`))
		},
		func(w http.ResponseWriter, _ *http.Request) {
			t.Error("user endpoint should not be called")
		},
	)

	_, err := newTestProvider(t, srv).ExchangeCode(context.Background(), "stale")
	var oe *model.OAuthExchangeError
	if !errors.As(err, &oe) {
		t.Fatalf("expected *model.OAuthExchangeError, got %T (%v)", err, err)
	}
	if oe.Code != "bad_verification_code" {
		t.Errorf("Code = %q, want bad_verification_code", oe.Code)
	}
	if oe.Description != "The code passed is incorrect or expired." {
		t.Errorf("Description = %q", oe.Description)
	}
}

func TestGitHubOAuthProvider_ExchangeCode_ProfileError(t *testing.T) {
	srv := newGitHubTestServer(t, okToken, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := newTestProvider(t, srv).ExchangeCode(context.Background(), "code")
	var oe *model.OAuthExchangeError
	if !errors.As(err, &oe) {
		t.Fatalf("expected *model.OAuthExchangeError, got %T (%v)", err, err)
	}
}

func TestGitHubOAuthProvider_ExchangeCode_IncompleteProfile(t *testing.T) {
	srv := newGitHubTestServer(t, okToken, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": 0, "login": ""}`))
	})

	_, err := newTestProvider(t, srv).ExchangeCode(context.Background(), "code")
	var oe *model.OAuthExchangeError
	if !errors.As(err, &oe) {
		t.Fatalf("expected *model.OAuthExchangeError, got %T (%v)", err, err)
	}
}

func TestParseAPIBaseURL_AddsTrailingSlash(t *testing.T) {
	u, err := parseAPIBaseURL("http://127.0.0.1:9000/api")
	if err != nil {
		t.Fatalf("parseAPIBaseURL() error = %v", err)
	}
	if u.String() != "http://127.0.0.1:9000/api/" {
		t.Errorf("url = %q", u.String())
	}
}
