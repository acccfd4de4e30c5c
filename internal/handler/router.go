package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/trug/internal/metrics"
	"github.com/hitoshi/trug/internal/middleware"
	"github.com/hitoshi/trug/internal/session"
)

// oauthCallbackPath はGitHubからのPOSTコールバックを受けるパス。CSRF検証の対象外。
const oauthCallbackPath = "/auth/github/callback"

// RouterConfig はルーター全体に関わる設定。
type RouterConfig struct {
	Production   bool // HSTSを有効にする
	CookieSecure bool
	CookieDomain string
	DevAutoLogin bool
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Config RouterConfig
	Logger *slog.Logger

	// ミドルウェア依存
	Metrics         metrics.MetricsCollector
	MetricsHandler  http.Handler
	HealthChecker   HealthChecker
	RateLimiter     *middleware.RateLimiter
	Blocklist       middleware.BlocklistConfig
	Cookies         *session.CookieCodec
	Store           *session.Store
	SessionResolver middleware.SessionResolver
	AdminChecker    middleware.AdminChecker

	// ドメインサービス
	AuthService       AuthServiceInterface
	AttendanceService AttendanceServiceInterface
	MeetupService     MeetupServiceInterface
	ThumbnailResolver ThumbnailResolver
	AccountService    AccountServiceInterface
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RealIP → Logging → Recovery → Metrics → SecurityHeaders → Blocklist → RateLimit
//	  → [Session → CSRF]（Statelessでないルートのみ）
//	  → [RequireAuthentication → RequireAdmin]（routeTableのAccessに応じて）
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	// 1. 全ルート共通のミドルウェア
	r.Use(chimw.RealIP)
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewRecoveryMiddleware())
	if deps.Metrics != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.Metrics))
	}
	r.Use(middleware.NewSecurityHeadersMiddleware(deps.Config.Production))
	r.Use(middleware.NewBlocklistMiddleware(deps.Blocklist, deps.Metrics))
	if deps.RateLimiter != nil {
		r.Use(deps.RateLimiter.Middleware())
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		middleware.WriteNotFound(w)
	})

	handlers := newHandlerSet(deps)

	// 2. セッション不要のルート（ヘルスチェック、メトリクス）
	for _, route := range routeTable {
		if route.Stateless {
			r.Method(route.Method, route.Pattern, handlers.lookup(route))
		}
	}

	// 3. セッション解決とCSRF検証を行うルート
	csrfConfig := middleware.CSRFConfig{
		CookieSecure: deps.Config.CookieSecure,
		CookieDomain: deps.Config.CookieDomain,
		ExemptPaths:  []string{oauthCallbackPath},
	}
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionResolver, deps.Cookies, deps.Store,
			middleware.SessionConfig{DevAutoLogin: deps.Config.DevAutoLogin}))
		r.Use(middleware.NewCSRFMiddleware(csrfConfig))

		requireAuth := middleware.RequireAuthentication(deps.Store)
		requireAdmin := middleware.RequireAdmin(deps.AdminChecker, deps.Store)

		for _, route := range routeTable {
			if route.Stateless {
				continue
			}
			h := handlers.lookup(route)
			switch route.Access {
			case AccessPublic:
				r.Method(route.Method, route.Pattern, h)
			case AccessAuthenticated:
				r.With(requireAuth).Method(route.Method, route.Pattern, h)
			case AccessAdmin:
				r.With(requireAuth, requireAdmin).Method(route.Method, route.Pattern, h)
			}
		}
	})

	return r
}

// handlerSet はルーティング表のキーとハンドラーの対応。
type handlerSet map[string]http.Handler

func newHandlerSet(deps *RouterDeps) handlerSet {
	authHandler := NewAuthHandler(deps.AuthService, deps.AttendanceService, deps.Cookies, deps.Store)
	attendanceHandler := NewAttendanceHandler(deps.AttendanceService, deps.Store)
	pagesHandler := NewPagesHandler(deps.MeetupService, deps.AdminChecker, deps.Store)
	adminHandler := NewAdminHandler(deps.MeetupService)
	videoHandler := NewVideoHandler(deps.ThumbnailResolver)
	accountHandler := NewAccountHandler(deps.AccountService, deps.Cookies, deps.Store)

	metricsHandler := deps.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = http.NotFoundHandler()
	}

	return handlerSet{
		"GET /up":      NewHealthHandler(deps.HealthChecker),
		"GET /metrics": metricsHandler,

		"GET /":           http.HandlerFunc(pagesHandler.Home),
		"GET /archive":    http.HandlerFunc(pagesHandler.Archive),
		"GET /csrf-token": middleware.NewCSRFTokenHandler(middleware.CSRFConfig{CookieSecure: deps.Config.CookieSecure, CookieDomain: deps.Config.CookieDomain}),
		"GET /video-thumbnails/{provider}/{id}": http.HandlerFunc(videoHandler.Thumbnail),

		"GET /auth/github":           http.HandlerFunc(authHandler.Login),
		"GET /auth/github/callback":  http.HandlerFunc(authHandler.Callback),
		"POST /auth/github/callback": http.HandlerFunc(authHandler.Callback),
		"GET /auth/failure":          http.HandlerFunc(authHandler.Failure),
		"POST /session":              http.HandlerFunc(authHandler.CreateSession),
		"DELETE /session":            http.HandlerFunc(authHandler.Logout),
		"POST /session/logout":       http.HandlerFunc(authHandler.Logout),

		"GET /attendances/new": http.HandlerFunc(attendanceHandler.New),
		"POST /attendances":    http.HandlerFunc(attendanceHandler.Create),

		"DELETE /account": http.HandlerFunc(accountHandler.Delete),

		"GET /admin":         http.HandlerFunc(adminHandler.Dashboard),
		"GET /admin/meetups": http.HandlerFunc(adminHandler.Meetups),
		"GET /admin/talks":   http.HandlerFunc(adminHandler.Talks),
	}
}

// lookup はルートに対応するハンドラーを返す。未登録は起動時のプログラミングエラー。
func (s handlerSet) lookup(route Route) http.Handler {
	h, ok := s[route.key()]
	if !ok {
		panic(fmt.Sprintf("handler: no handler registered for %s", route.key()))
	}
	return h
}
