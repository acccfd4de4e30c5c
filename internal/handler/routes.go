package handler

// Access はルートに必要な認可レベル。
type Access int

const (
	// AccessPublic は未ログインでもアクセスできる。
	AccessPublic Access = iota
	// AccessAuthenticated はログインが必要。
	AccessAuthenticated
	// AccessAdmin はログインと管理者権限が必要。
	AccessAdmin
)

// String はログ・テスト出力用の名前を返す。
func (a Access) String() string {
	switch a {
	case AccessPublic:
		return "public"
	case AccessAuthenticated:
		return "authenticated"
	case AccessAdmin:
		return "admin"
	default:
		return "unknown"
	}
}

// Route はルーティング表の1エントリ。
type Route struct {
	Method  string
	Pattern string
	Access  Access
	// Stateless はセッション解決とCSRF検証の外側に配置するルート（ヘルスチェック等）。
	Stateless bool
}

func (r Route) key() string {
	return r.Method + " " + r.Pattern
}

// routeTable は全ルートの宣言。ガードの適用はここでのみ決まる。
var routeTable = []Route{
	{Method: "GET", Pattern: "/up", Access: AccessPublic, Stateless: true},
	{Method: "GET", Pattern: "/metrics", Access: AccessPublic, Stateless: true},

	{Method: "GET", Pattern: "/", Access: AccessPublic},
	{Method: "GET", Pattern: "/archive", Access: AccessPublic},
	{Method: "GET", Pattern: "/csrf-token", Access: AccessPublic},
	{Method: "GET", Pattern: "/video-thumbnails/{provider}/{id}", Access: AccessPublic},

	{Method: "GET", Pattern: "/auth/github", Access: AccessPublic},
	{Method: "GET", Pattern: "/auth/github/callback", Access: AccessPublic},
	{Method: "POST", Pattern: "/auth/github/callback", Access: AccessPublic},
	{Method: "GET", Pattern: "/auth/failure", Access: AccessPublic},
	{Method: "POST", Pattern: "/session", Access: AccessPublic},
	{Method: "DELETE", Pattern: "/session", Access: AccessPublic},
	{Method: "POST", Pattern: "/session/logout", Access: AccessPublic},

	// 未ログインの送信は保留してOAuthへ誘導するため、ガードはかけない
	{Method: "GET", Pattern: "/attendances/new", Access: AccessPublic},
	{Method: "POST", Pattern: "/attendances", Access: AccessPublic},

	{Method: "DELETE", Pattern: "/account", Access: AccessAuthenticated},

	{Method: "GET", Pattern: "/admin", Access: AccessAdmin},
	{Method: "GET", Pattern: "/admin/meetups", Access: AccessAdmin},
	{Method: "GET", Pattern: "/admin/talks", Access: AccessAdmin},
}

// Routes は全ルートの宣言のコピーを返す。
func Routes() []Route {
	out := make([]Route, len(routeTable))
	copy(out, routeTable)
	return out
}

// PublicRoutes は認証ガードの対象外となるルートを返す。
func PublicRoutes() []Route {
	var out []Route
	for _, r := range routeTable {
		if r.Access == AccessPublic {
			out = append(out, r)
		}
	}
	return out
}
