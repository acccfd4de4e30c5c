package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/go-github/v66/github"
	"golang.org/x/oauth2"
	githuboauth "golang.org/x/oauth2/github"

	"github.com/hitoshi/trug/internal/model"
)

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
type OAuthProvider interface {
	// GetLoginURL はOAuth認証URLを生成する。
	GetLoginURL(state string) string
	// ExchangeCode は認可コードをトークンに交換し、プロフィールを取得する。
	// 失敗時は*model.OAuthExchangeErrorを返す。
	ExchangeCode(ctx context.Context, code string) (*model.ExternalProfile, error)
}

// GitHubOAuthConfig はGitHub OAuthプロバイダーの設定。
type GitHubOAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Timeout      time.Duration

	// テスト用にオーバーライド可能なURL
	AuthURL    string
	TokenURL   string
	APIBaseURL string
}

// GitHubOAuthProvider はGitHub OAuth Appによる認証を提供する。
type GitHubOAuthProvider struct {
	oauth      *oauth2.Config
	httpClient *http.Client
	apiBaseURL *url.URL
}

// NewGitHubOAuthProvider はGitHubOAuthProviderを生成する。
func NewGitHubOAuthProvider(config GitHubOAuthConfig) (*GitHubOAuthProvider, error) {
	endpoint := githuboauth.Endpoint
	if config.AuthURL != "" {
		endpoint.AuthURL = config.AuthURL
	}
	if config.TokenURL != "" {
		endpoint.TokenURL = config.TokenURL
	}
	// GitHubはclient_secretをボディで受け付ける。自動判定による二重リクエストを避ける。
	endpoint.AuthStyle = oauth2.AuthStyleInParams

	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}

	p := &GitHubOAuthProvider{
		oauth: &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			RedirectURL:  config.RedirectURL,
			Endpoint:     endpoint,
			Scopes:       []string{"read:user"},
		},
		httpClient: &http.Client{Timeout: config.Timeout},
	}

	if config.APIBaseURL != "" {
		u, err := parseAPIBaseURL(config.APIBaseURL)
		if err != nil {
			return nil, err
		}
		p.apiBaseURL = u
	}

	return p, nil
}

// parseAPIBaseURL はgo-githubのBaseURLとして使えるよう末尾スラッシュを補う。
func parseAPIBaseURL(raw string) (*url.URL, error) {
	if !strings.HasSuffix(raw, "/") {
		raw += "/"
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid github api url: %w", err)
	}
	return u, nil
}

// GetLoginURL はGitHubの認可画面URLを生成する。
func (p *GitHubOAuthProvider) GetLoginURL(state string) string {
	return p.oauth.AuthCodeURL(state)
}

// ExchangeCode は認可コードをアクセストークンに交換し、GitHubプロフィールを取得する。
// リトライは行わない。
func (p *GitHubOAuthProvider) ExchangeCode(ctx context.Context, code string) (*model.ExternalProfile, error) {
	// 1. 認可コードをアクセストークンに交換
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	token, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			return nil, &model.OAuthExchangeError{
				Code:        re.ErrorCode,
				Description: re.ErrorDescription,
				Err:         err,
			}
		}
		return nil, &model.OAuthExchangeError{Description: "token request failed", Err: err}
	}

	// 2. アクセストークンでプロフィールを取得
	profile, err := p.fetchProfile(ctx, token.AccessToken)
	if err != nil {
		return nil, &model.OAuthExchangeError{Description: "profile fetch failed", Err: err}
	}

	return profile, nil
}

// fetchProfile はGET /userで認証済みユーザーのプロフィールを取得する。
func (p *GitHubOAuthProvider) fetchProfile(ctx context.Context, accessToken string) (*model.ExternalProfile, error) {
	client := github.NewClient(p.httpClient).WithAuthToken(accessToken)
	if p.apiBaseURL != nil {
		client.BaseURL = p.apiBaseURL
	}

	user, _, err := client.Users.Get(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to get github user: %w", err)
	}
	if user.GetID() == 0 || user.GetLogin() == "" {
		return nil, errors.New("github user response missing id or login")
	}

	return &model.ExternalProfile{
		ID:    strconv.FormatInt(user.GetID(), 10),
		Login: user.GetLogin(),
		Email: user.GetEmail(),
	}, nil
}

// compile-time interface check
var _ OAuthProvider = (*GitHubOAuthProvider)(nil)
