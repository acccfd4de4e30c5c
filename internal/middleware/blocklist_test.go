package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestBlocklistMiddleware(t *testing.T) {
	mc := &blockedCounter{}
	handler := NewBlocklistMiddleware(DefaultBlocklistConfig(), mc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name      string
		path      string
		userAgent string
		ip        string
		want      int
	}{
		{"home", "/", "Mozilla/5.0", "198.51.100.1", http.StatusOK},
		{"admin pages", "/admin/meetups", "Mozilla/5.0", "198.51.100.1", http.StatusOK},
		{"wordpress login", "/wp-login.php", "Mozilla/5.0", "198.51.100.1", http.StatusForbidden},
		{"dotenv", "/.env", "Mozilla/5.0", "198.51.100.1", http.StatusForbidden},
		{"git config uppercase", "/.GIT/config", "Mozilla/5.0", "198.51.100.1", http.StatusForbidden},
		{"git head", "/.git/HEAD", "Mozilla/5.0", "198.51.100.1", http.StatusForbidden},
		{"sqlmap", "/", "sqlmap/1.7", "198.51.100.1", http.StatusForbidden},
		{"curl", "/archive", "curl/8.4.0", "198.51.100.1", http.StatusForbidden},
		{"loopback curl", "/up", "curl/8.4.0", "127.0.0.1", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			req.Header.Set("User-Agent", tt.userAgent)
			req.RemoteAddr = tt.ip + ":1234"
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}

	want := map[string]int{"blocklist_path": 4, "blocklist_user_agent": 2}
	got := map[string]int{}
	for _, r := range mc.reasons {
		got[r]++
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %d, want %d", k, got[k], v)
		}
	}
}
