package auth

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/trug/internal/cache"
	"github.com/hitoshi/trug/internal/metrics"
	"github.com/hitoshi/trug/internal/model"
)

// Strategy は管理者判定の1手段を表す。
// 判定不能な場合はerrorを返し、Authorizerはそれを「管理者ではない」と扱う。
type Strategy interface {
	Name() string
	IsAdmin(ctx context.Context, username string) (bool, error)
}

// AuthorizerConfig はAuthorizerの設定。
type AuthorizerConfig struct {
	Development bool          // trueの場合、GitHub連携済みユーザーは全員管理者
	Timeout     time.Duration // 各判定手段のタイムアウト
	CacheTTL    time.Duration // 判定結果のキャッシュ期間
}

// Authorizer は複数の判定手段を順に試し、ユーザーが管理者かどうかを判定する。
type Authorizer struct {
	strategies []Strategy
	cache      cache.Cache
	metrics    metrics.MetricsCollector
	config     AuthorizerConfig
}

// NewAuthorizer はAuthorizerを生成する。strategiesは指定順に評価される。
func NewAuthorizer(config AuthorizerConfig, c cache.Cache, mc metrics.MetricsCollector, strategies ...Strategy) *Authorizer {
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Second
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = 5 * time.Minute
	}
	return &Authorizer{
		strategies: strategies,
		cache:      c,
		metrics:    mc,
		config:     config,
	}
}

// StrategyNames は評価順の判定手段名を返す。
func (a *Authorizer) StrategyNames() []string {
	names := make([]string, 0, len(a.strategies))
	for _, s := range a.strategies {
		names = append(names, s.Name())
	}
	return names
}

func adminCacheKey(username string) string {
	return "admin:" + strings.ToLower(username)
}

// IsAdmin はユーザーが管理者かどうかを返す。
// GitHub未連携のユーザーは常にfalse。判定中のエラーはfalseとして扱う。
func (a *Authorizer) IsAdmin(ctx context.Context, user *model.User) bool {
	if !user.HasGitHub() {
		return false
	}
	if a.config.Development {
		return true
	}

	username := user.GitHubUsername
	key := adminCacheKey(username)

	// 1. キャッシュを確認
	if a.cache != nil {
		if v, ok, err := a.cache.Get(ctx, key); err != nil {
			slog.Warn("admin cache read failed", slog.String("error", err.Error()))
		} else if ok {
			return v == "1"
		}
	}

	// 2. 判定手段を順に評価（最初にtrueを返したもので確定）
	granted := false
	failed := false
	for _, s := range a.strategies {
		ok, err := a.evaluate(ctx, s, username)
		if err != nil {
			failed = true
			continue
		}
		if ok {
			granted = true
			break
		}
	}

	// 3. 確定的な結果のみキャッシュ（エラーを含む否定結果は次回再評価）
	if a.cache != nil && (granted || !failed) {
		v := "0"
		if granted {
			v = "1"
		}
		if err := a.cache.Set(ctx, key, v, a.config.CacheTTL); err != nil {
			slog.Warn("admin cache write failed", slog.String("error", err.Error()))
		}
	}

	return granted
}

// evaluate はタイムアウト付きで1つの判定手段を実行する。
func (a *Authorizer) evaluate(ctx context.Context, s Strategy, username string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, a.config.Timeout)
	defer cancel()

	ok, err := s.IsAdmin(ctx, username)
	switch {
	case err != nil:
		slog.Warn("AuthorizationCheckFailed",
			slog.String("strategy", s.Name()),
			slog.String("github_username", username),
			slog.String("error", err.Error()),
		)
		a.record(s.Name(), "error")
		return false, err
	case ok:
		a.record(s.Name(), "granted")
	default:
		a.record(s.Name(), "denied")
	}
	return ok, nil
}

func (a *Authorizer) record(strategy, result string) {
	if a.metrics != nil {
		a.metrics.RecordAdminCheck(strategy, result)
	}
}

// AllowListStrategy は設定済みのユーザー名一覧で判定する。大文字小文字は区別しない。
type AllowListStrategy struct {
	usernames map[string]struct{}
}

// NewAllowListStrategy はAllowListStrategyを生成する。
func NewAllowListStrategy(usernames []string) *AllowListStrategy {
	m := make(map[string]struct{}, len(usernames))
	for _, u := range usernames {
		u = strings.ToLower(strings.TrimSpace(u))
		if u != "" {
			m[u] = struct{}{}
		}
	}
	return &AllowListStrategy{usernames: m}
}

func (s *AllowListStrategy) Name() string { return "allowlist" }

func (s *AllowListStrategy) IsAdmin(_ context.Context, username string) (bool, error) {
	_, ok := s.usernames[strings.ToLower(username)]
	return ok, nil
}

var _ Strategy = (*AllowListStrategy)(nil)
