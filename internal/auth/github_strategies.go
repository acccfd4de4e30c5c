package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/go-github/v66/github"

	"github.com/hitoshi/trug/internal/metrics"
)

// GitHubRepoConfig はリポジトリ権限の問い合わせに使う設定。
type GitHubRepoConfig struct {
	Token      string
	Owner      string
	Repo       string
	APIBaseURL string        // テスト用。空の場合はapi.github.com
	OwnerTTL   time.Duration // オーナー情報の保持期間。0以下の場合は1時間
}

// GitHubRepoClient はサイトのリポジトリに対する権限情報をGitHub APIから取得する。
type GitHubRepoClient struct {
	client  *github.Client
	owner   string
	repo    string
	metrics metrics.MetricsCollector

	ownerTTL time.Duration
	nowFunc  func() time.Time

	mu        sync.Mutex
	ownerInfo *repoOwner
}

type repoOwner struct {
	login     string
	typ       string // "User" または "Organization"
	fetchedAt time.Time
}

// NewGitHubRepoClient はGitHubRepoClientを生成する。
func NewGitHubRepoClient(config GitHubRepoConfig, mc metrics.MetricsCollector) (*GitHubRepoClient, error) {
	if config.Owner == "" || config.Repo == "" {
		return nil, errors.New("github repository owner and name are required")
	}

	client := github.NewClient(&http.Client{}).WithAuthToken(config.Token)
	if config.APIBaseURL != "" {
		u, err := parseAPIBaseURL(config.APIBaseURL)
		if err != nil {
			return nil, err
		}
		client.BaseURL = u
	}

	if config.OwnerTTL <= 0 {
		config.OwnerTTL = time.Hour
	}

	return &GitHubRepoClient{
		client:   client,
		owner:    config.Owner,
		repo:     config.Repo,
		metrics:  mc,
		ownerTTL: config.OwnerTTL,
		nowFunc:  time.Now,
	}, nil
}

func (c *GitHubRepoClient) observe(endpoint string, start time.Time) {
	if c.metrics != nil {
		c.metrics.RecordGitHubAPILatency(endpoint, time.Since(start))
	}
}

// IsCollaborator はユーザーがリポジトリのコラボレーターかどうかを返す。
func (c *GitHubRepoClient) IsCollaborator(ctx context.Context, username string) (bool, error) {
	defer c.observe("collaborator", time.Now())

	ok, _, err := c.client.Repositories.IsCollaborator(ctx, c.owner, c.repo, username)
	if err != nil {
		return false, fmt.Errorf("failed to check collaborator: %w", err)
	}
	return ok, nil
}

// Owner はリポジトリのオーナー情報を返す。取得した値はOwnerTTLの間保持する。
// API呼び出し中はロックを保持しない。
func (c *GitHubRepoClient) Owner(ctx context.Context) (login, typ string, err error) {
	c.mu.Lock()
	cached := c.ownerInfo
	c.mu.Unlock()

	if cached != nil && c.nowFunc().Sub(cached.fetchedAt) < c.ownerTTL {
		return cached.login, cached.typ, nil
	}

	start := time.Now()
	repo, _, err := c.client.Repositories.Get(ctx, c.owner, c.repo)
	c.observe("repository", start)
	if err != nil {
		return "", "", fmt.Errorf("failed to get repository: %w", err)
	}

	owner := repo.GetOwner()
	info := &repoOwner{login: owner.GetLogin(), typ: owner.GetType(), fetchedAt: c.nowFunc()}

	c.mu.Lock()
	c.ownerInfo = info
	c.mu.Unlock()
	return info.login, info.typ, nil
}

// OrgMembership はユーザーの組織メンバーシップの状態とロールを返す。
// メンバーでない場合は空文字を返す。
func (c *GitHubRepoClient) OrgMembership(ctx context.Context, org, username string) (state, role string, err error) {
	defer c.observe("org_membership", time.Now())

	m, resp, err := c.client.Organizations.GetOrgMembership(ctx, username, org)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return "", "", nil
		}
		return "", "", fmt.Errorf("failed to get org membership: %w", err)
	}
	return m.GetState(), m.GetRole(), nil
}

// CollaboratorStrategy はリポジトリのコラボレーターを管理者とみなす。
type CollaboratorStrategy struct {
	client *GitHubRepoClient
}

func NewCollaboratorStrategy(client *GitHubRepoClient) *CollaboratorStrategy {
	return &CollaboratorStrategy{client: client}
}

func (s *CollaboratorStrategy) Name() string { return "collaborator" }

func (s *CollaboratorStrategy) IsAdmin(ctx context.Context, username string) (bool, error) {
	return s.client.IsCollaborator(ctx, username)
}

// OwnerStrategy はリポジトリのオーナー本人を管理者とみなす。
type OwnerStrategy struct {
	client *GitHubRepoClient
}

func NewOwnerStrategy(client *GitHubRepoClient) *OwnerStrategy {
	return &OwnerStrategy{client: client}
}

func (s *OwnerStrategy) Name() string { return "owner" }

func (s *OwnerStrategy) IsAdmin(ctx context.Context, username string) (bool, error) {
	login, _, err := s.client.Owner(ctx)
	if err != nil {
		return false, err
	}
	return strings.EqualFold(login, username), nil
}

// OrgRoleStrategy はリポジトリが組織所有の場合、組織のadminまたはbilling_managerを管理者とみなす。
type OrgRoleStrategy struct {
	client *GitHubRepoClient
}

func NewOrgRoleStrategy(client *GitHubRepoClient) *OrgRoleStrategy {
	return &OrgRoleStrategy{client: client}
}

func (s *OrgRoleStrategy) Name() string { return "org_role" }

func (s *OrgRoleStrategy) IsAdmin(ctx context.Context, username string) (bool, error) {
	login, typ, err := s.client.Owner(ctx)
	if err != nil {
		return false, err
	}
	if typ != "Organization" {
		return false, nil
	}

	state, role, err := s.client.OrgMembership(ctx, login, username)
	if err != nil {
		return false, err
	}
	if state != "active" {
		return false, nil
	}
	return role == "admin" || role == "billing_manager", nil
}

var (
	_ Strategy = (*CollaboratorStrategy)(nil)
	_ Strategy = (*OwnerStrategy)(nil)
	_ Strategy = (*OrgRoleStrategy)(nil)
)

// GitHubStrategies はコラボレーター・オーナー・組織ロールの順で判定手段を返す。
func GitHubStrategies(client *GitHubRepoClient) []Strategy {
	return []Strategy{
		NewCollaboratorStrategy(client),
		NewOwnerStrategy(client),
		NewOrgRoleStrategy(client),
	}
}
