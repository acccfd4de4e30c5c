// Package config は環境変数からアプリケーション設定を読み込む。
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// 実行環境
const (
	EnvProduction  = "production"
	EnvDevelopment = "development"
	EnvTest        = "test"
)

// placeholderGitHubToken は開発用テンプレートに含まれるダミートークン。
// 設定されていても未設定として扱う。
const placeholderGitHubToken = "ghp_development_test_token"

// minSessionSecretLen はSESSION_SECRETの最小長（バイト）。
const minSessionSecretLen = 32

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	AppEnv   string `env:"APP_ENV" envDefault:"production"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Database
	DatabaseURL            string        `env:"DATABASE_URL,required,notEmpty"`
	DatabaseConnectTimeout time.Duration `env:"DATABASE_CONNECT_TIMEOUT" envDefault:"30s"`

	// Redis（未設定の場合はプロセス内キャッシュ）
	RedisURL string `env:"REDIS_URL"`

	// GitHub OAuth
	GitHubClientID     string        `env:"GITHUB_CLIENT_ID"`
	GitHubClientSecret string        `env:"GITHUB_CLIENT_SECRET"`
	GitHubRedirectURL  string        `env:"GITHUB_REDIRECT_URL"`
	OAuthTimeout       time.Duration `env:"OAUTH_TIMEOUT" envDefault:"10s"`

	// GitHub API（管理者判定）
	GitHubToken       string        `env:"GITHUB_TOKEN"`
	GitHubAPIURL      string        `env:"GITHUB_API_URL"`
	GitHubRepo        string        `env:"GITHUB_REPO" envDefault:"3cityRUG/TRUG"`
	AdminUsernames    []string      `env:"ADMIN_USERNAMES" envDefault:"gotar" envSeparator:","`
	AdminCheckTimeout time.Duration `env:"ADMIN_CHECK_TIMEOUT" envDefault:"5s"`
	AdminCacheTTL     time.Duration `env:"ADMIN_CACHE_TTL" envDefault:"5m"`

	// Session
	SessionSecret string `env:"SESSION_SECRET,required,notEmpty"`
	SessionMaxAge int    `env:"SESSION_MAX_AGE" envDefault:"2592000"`
	DevAutoLogin  bool   `env:"DEV_AUTO_LOGIN" envDefault:"false"`

	// Rate Limit
	RateLimitGeneral int `env:"RATE_LIMIT_GENERAL" envDefault:"300"` // 5分あたり
	RateLimitLogin   int `env:"RATE_LIMIT_LOGIN" envDefault:"10"`    // 1分あたり

	// Video thumbnails
	ThumbnailCacheTTL time.Duration `env:"THUMBNAIL_CACHE_TTL" envDefault:"24h"`
	ThumbnailTimeout  time.Duration `env:"THUMBNAIL_TIMEOUT" envDefault:"5s"`

	// Worker
	SessionCleanupInterval time.Duration `env:"SESSION_CLEANUP_INTERVAL" envDefault:"24h"`

	// Server
	ServerPort string `env:"SERVER_PORT" envDefault:"8080"`
	BaseURL    string `env:"BASE_URL,required,notEmpty"`

	// Cookie（CookieSecureはAPP_ENVとBASE_URLから導出）
	CookieSecure bool
	CookieDomain string `env:"COOKIE_DOMAIN"`
}

// Load は環境変数からConfigを読み込み、検証する。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.GitHubRedirectURL == "" {
		cfg.GitHubRedirectURL = cfg.BaseURL + "/auth/github/callback"
	}
	cfg.CookieSecure = cfg.IsProduction() || strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.AdminUsernames = normalizeUsernames(cfg.AdminUsernames)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate は環境ごとの制約を検証する。
// 本番環境ではOAuth資格情報が必須。それ以外の環境ではOAuthを無効化して起動する。
func (c *Config) Validate() error {
	var errs []error

	switch c.AppEnv {
	case EnvProduction, EnvDevelopment, EnvTest:
	default:
		errs = append(errs, fmt.Errorf("APP_ENV must be one of production, development, test: %q", c.AppEnv))
	}
	if len(c.SessionSecret) < minSessionSecretLen {
		errs = append(errs, fmt.Errorf("SESSION_SECRET must be at least %d bytes", minSessionSecretLen))
	}
	if c.SessionMaxAge <= 0 {
		errs = append(errs, errors.New("SESSION_MAX_AGE must be positive"))
	}
	if c.IsProduction() && !c.OAuthEnabled() {
		errs = append(errs, errors.New("GITHUB_CLIENT_ID and GITHUB_CLIENT_SECRET are required in production"))
	}
	if c.IsProduction() && c.DevAutoLogin {
		errs = append(errs, errors.New("DEV_AUTO_LOGIN must not be enabled in production"))
	}
	return errors.Join(errs...)
}

// IsProduction は本番環境かどうかを返す。
func (c *Config) IsProduction() bool { return c.AppEnv == EnvProduction }

// IsDevelopment は開発環境かどうかを返す。
func (c *Config) IsDevelopment() bool { return c.AppEnv == EnvDevelopment }

// OAuthEnabled はGitHub OAuthの資格情報が揃っているかを返す。
func (c *Config) OAuthEnabled() bool {
	return c.GitHubClientID != "" && c.GitHubClientSecret != ""
}

// GitHubAPIEnabled はGitHub APIによる管理者判定が可能かを返す。
func (c *Config) GitHubAPIEnabled() bool {
	return c.GitHubToken != "" && c.GitHubToken != placeholderGitHubToken
}

// RepoOwnerAndName はGITHUB_REPOをownerとnameに分割する。
// owner/name形式でない場合はokがfalseになる。
func (c *Config) RepoOwnerAndName() (owner, name string, ok bool) {
	owner, name, found := strings.Cut(strings.TrimSpace(c.GitHubRepo), "/")
	if !found || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", "", false
	}
	return owner, name, true
}

// LogDegradedFeatures は資格情報不足で無効化された機能をログ出力する。
func (c *Config) LogDegradedFeatures() {
	if !c.OAuthEnabled() {
		slog.Warn("github oauth disabled: GITHUB_CLIENT_ID or GITHUB_CLIENT_SECRET not set",
			slog.String("app_env", c.AppEnv),
		)
	}
	if !c.GitHubAPIEnabled() {
		slog.Warn("github api admin checks disabled: GITHUB_TOKEN not set",
			slog.Int("allow_list_size", len(c.AdminUsernames)),
		)
	}
	if _, _, ok := c.RepoOwnerAndName(); c.GitHubAPIEnabled() && !ok {
		slog.Warn("github api admin checks disabled: GITHUB_REPO is not in owner/name form",
			slog.String("github_repo", c.GitHubRepo),
		)
	}
	if c.IsDevelopment() && c.DevAutoLogin {
		slog.Warn("development auto-login enabled")
	}
}

func normalizeUsernames(in []string) []string {
	out := make([]string, 0, len(in))
	for _, u := range in {
		u = strings.ToLower(strings.TrimSpace(u))
		if u != "" {
			out = append(out, u)
		}
	}
	return out
}
