// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/hitoshi/trug/internal/model"
	"github.com/hitoshi/trug/internal/session"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	userContextKey    = contextKey("current_user")
	sessionContextKey = contextKey("current_session")

	requestInfoContextKey = contextKey("request_info")
)

// SessionResolver はセッションIDから利用者を解決するインターフェース。
// auth.Serviceの部分集合として定義する。
type SessionResolver interface {
	ResolveSession(ctx context.Context, sessionID string) (*model.User, *model.Session, error)
	StartDevSession(ctx context.Context, meta model.ClientMeta) (*model.User, *model.Session, error)
}

// SessionConfig はセッションミドルウェアの設定。
type SessionConfig struct {
	DevAutoLogin bool // APP_ENV=development かつ DEV_AUTO_LOGIN=true の場合のみtrue
}

// NewSessionMiddleware は署名付きCookieからログインセッションを解決し、
// 利用者をリクエストコンテキストに注入するミドルウェアを返す。
// 未認証でもリクエストは拒否しない（保護はRequireAuthenticationが担う）。
func NewSessionMiddleware(resolver SessionResolver, cookies *session.CookieCodec, store *session.Store, config SessionConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			// 1. CookieからセッションIDを取得
			sessionID, hasCookie := cookies.Read(r)

			// 2. セッションと利用者を解決
			user, sess, err := resolver.ResolveSession(ctx, sessionID)
			if err != nil {
				slog.Error("failed to resolve session", slog.String("error", err.Error()))
				user, sess = nil, nil
			}
			if user == nil && hasCookie && err == nil {
				// 失効済みのセッションを指すCookieは破棄する
				cookies.Clear(w)
			}

			// 3. 開発環境の自動ログイン
			if user == nil && config.DevAutoLogin && !store.SkipAutoLogin(r) && !isAuthPath(r.URL.Path) {
				user, sess = startDevSession(ctx, w, r, resolver, cookies)
			}

			// 4. 利用者をコンテキストに注入
			if user != nil {
				ctx = ContextWithCurrent(ctx, user, sess)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func startDevSession(ctx context.Context, w http.ResponseWriter, r *http.Request, resolver SessionResolver, cookies *session.CookieCodec) (*model.User, *model.Session) {
	user, sess, err := resolver.StartDevSession(ctx, ClientMetaFromRequest(r))
	if err != nil {
		slog.Warn("development auto-login failed", slog.String("error", err.Error()))
		return nil, nil
	}
	if err := cookies.Write(w, sess.ID); err != nil {
		slog.Error("failed to write session cookie", slog.String("error", err.Error()))
		return nil, nil
	}
	return user, sess
}

func isAuthPath(path string) bool {
	return path == "/auth" || strings.HasPrefix(path, "/auth/")
}

// CurrentUserFromContext はリクエストコンテキストから現在の利用者を取得する。
// 未認証の場合はnilを返す。
func CurrentUserFromContext(ctx context.Context) *model.User {
	user, _ := ctx.Value(userContextKey).(*model.User)
	return user
}

// CurrentSessionFromContext はリクエストコンテキストから現在のセッションを取得する。
func CurrentSessionFromContext(ctx context.Context) *model.Session {
	sess, _ := ctx.Value(sessionContextKey).(*model.Session)
	return sess
}

// ContextWithCurrent はコンテキストに利用者とセッションを注入する。
// テストやログイン直後のハンドラー内で使用する。
func ContextWithCurrent(ctx context.Context, user *model.User, sess *model.Session) context.Context {
	if info, ok := ctx.Value(requestInfoContextKey).(*requestInfo); ok {
		info.userID = userID(user)
	}
	ctx = context.WithValue(ctx, userContextKey, user)
	return context.WithValue(ctx, sessionContextKey, sess)
}

// ClientIP はリクエスト元のIPアドレスを返す。
// chiのRealIPミドルウェアの後に配置されていることを前提とする。
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// ClientMetaFromRequest はセッション作成時に記録するクライアント情報を返す。
func ClientMetaFromRequest(r *http.Request) model.ClientMeta {
	return model.ClientMeta{
		UserAgent: r.UserAgent(),
		IPAddress: ClientIP(r),
	}
}
