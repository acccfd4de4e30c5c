package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/trug/internal/model"
)

type blockedCounter struct {
	noopMetrics
	mu      sync.Mutex
	reasons []string
}

func (c *blockedCounter) RecordBlockedRequest(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reasons = append(c.reasons, reason)
}

func requestFrom(method, path, ip string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = ip + ":40000"
	return req
}

func newTestRateLimiter(t *testing.T, cfg RateLimiterConfig, mc *blockedCounter) http.Handler {
	t.Helper()
	rl := NewRateLimiter(cfg, mc)
	t.Cleanup(rl.Stop)
	return rl.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func TestDefaultRateLimiterConfig(t *testing.T) {
	cfg := DefaultRateLimiterConfig()
	if cfg.GeneralBurst != 300 || cfg.GeneralRate != rate.Limit(1) {
		t.Errorf("general = %v/%d, want 1 req/s burst 300", cfg.GeneralRate, cfg.GeneralBurst)
	}
	if cfg.LoginBurst != 10 {
		t.Errorf("login burst = %d, want 10", cfg.LoginBurst)
	}
}

func TestRateLimiter_GeneralLimitPerIP(t *testing.T) {
	mc := &blockedCounter{}
	handler := newTestRateLimiter(t, RateLimiterConfig{
		GeneralRate: rate.Every(time.Hour), GeneralBurst: 2,
		LoginRate: rate.Every(time.Hour), LoginBurst: 100,
		CleanupInterval: time.Minute,
	}, mc)

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, requestFrom(http.MethodGet, "/", "198.51.100.1"))
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i, w.Code)
		}
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, requestFrom(http.MethodGet, "/", "198.51.100.1"))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if ra, err := strconv.Atoi(w.Header().Get("Retry-After")); err != nil || ra < 1 {
		t.Errorf("Retry-After = %q", w.Header().Get("Retry-After"))
	}
	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if body.Code != model.ErrCodeRateLimited {
		t.Errorf("code = %q", body.Code)
	}

	// 別IPは独立
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, requestFrom(http.MethodGet, "/", "198.51.100.2"))
	if w.Code != http.StatusOK {
		t.Errorf("other IP status = %d, want 200", w.Code)
	}

	if len(mc.reasons) != 1 || mc.reasons[0] != "throttle_general" {
		t.Errorf("reasons = %v", mc.reasons)
	}
}

func TestRateLimiter_SkipsAssetsAndSessionForGeneralLimit(t *testing.T) {
	handler := newTestRateLimiter(t, RateLimiterConfig{
		GeneralRate: rate.Every(time.Hour), GeneralBurst: 1,
		LoginRate: rate.Every(time.Hour), LoginBurst: 100,
		CleanupInterval: time.Minute,
	}, &blockedCounter{})

	for _, path := range []string{"/assets/app.css", "/assets/app.js", "/session", "/session/logout"} {
		for i := 0; i < 3; i++ {
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, requestFrom(http.MethodDelete, path, "198.51.100.3"))
			if w.Code != http.StatusOK {
				t.Fatalf("%s request %d: status = %d, want 200", path, i, w.Code)
			}
		}
	}
}

func TestRateLimiter_LoginLimit(t *testing.T) {
	mc := &blockedCounter{}
	handler := newTestRateLimiter(t, RateLimiterConfig{
		GeneralRate: rate.Inf, GeneralBurst: 1,
		LoginRate: rate.Every(time.Hour), LoginBurst: 2,
		CleanupInterval: time.Minute,
	}, mc)

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, requestFrom(http.MethodGet, "/auth/github", "198.51.100.4"))
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d", i, w.Code)
		}
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, requestFrom(http.MethodPost, "/session", "198.51.100.4"))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("POST /session status = %d, want 429", w.Code)
	}

	// ログイン以外のページは影響を受けない
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, requestFrom(http.MethodGet, "/archive", "198.51.100.4"))
	if w.Code != http.StatusOK {
		t.Errorf("/archive status = %d, want 200", w.Code)
	}
	if len(mc.reasons) != 1 || mc.reasons[0] != "throttle_login" {
		t.Errorf("reasons = %v", mc.reasons)
	}
}

func TestRateLimiter_LoopbackIsSafelisted(t *testing.T) {
	handler := newTestRateLimiter(t, RateLimiterConfig{
		GeneralRate: rate.Every(time.Hour), GeneralBurst: 1,
		LoginRate: rate.Every(time.Hour), LoginBurst: 1,
		CleanupInterval: time.Minute,
	}, &blockedCounter{})

	for _, ip := range []string{"127.0.0.1", "[::1]"} {
		for i := 0; i < 5; i++ {
			req := httptest.NewRequest(http.MethodGet, "/auth/github", nil)
			req.RemoteAddr = ip + ":5000"
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			if w.Code != http.StatusOK {
				t.Fatalf("%s request %d: status = %d", ip, i, w.Code)
			}
		}
	}
}

func TestRateLimiter_CleanupEvictsIdleEntries(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		GeneralRate: 1, GeneralBurst: 10,
		LoginRate: 1, LoginBurst: 10,
		CleanupInterval: time.Hour,
	}, nil)
	defer rl.Stop()

	handler := rl.Middleware()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	handler.ServeHTTP(httptest.NewRecorder(), requestFrom(http.MethodGet, "/auth/github", "198.51.100.5"))

	if rl.GeneralLimiterCount() != 1 || rl.LoginLimiterCount() != 1 {
		t.Fatalf("counts = %d/%d, want 1/1", rl.GeneralLimiterCount(), rl.LoginLimiterCount())
	}

	rl.general.evict(time.Now().Add(3*time.Hour), 2*time.Hour)
	rl.login.evict(time.Now().Add(3*time.Hour), 2*time.Hour)

	if rl.GeneralLimiterCount() != 0 || rl.LoginLimiterCount() != 0 {
		t.Errorf("counts after evict = %d/%d, want 0/0", rl.GeneralLimiterCount(), rl.LoginLimiterCount())
	}
	rl.Stop() // 二重停止でもpanicしない
}
