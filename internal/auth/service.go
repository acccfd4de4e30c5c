// Package auth はGitHub OAuth認証フロー、ローカル認証、セッション管理、管理者判定を提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/trug/internal/metrics"
	"github.com/hitoshi/trug/internal/model"
	"github.com/hitoshi/trug/internal/repository"
)

var (
	// ErrOAuthDisabled はOAuthクレデンシャル未設定時にGitHubログインが要求された場合のエラー。
	ErrOAuthDisabled = errors.New("github oauth is not configured")
	// ErrInvalidCredentials はローカル認証でメールアドレスまたはパスワードが一致しない場合のエラー。
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrDevLoginDisabled は開発用自動ログインが無効な環境で要求された場合のエラー。
	ErrDevLoginDisabled = errors.New("development auto-login is disabled")
)

// 開発用自動ログインで使うユーザーの属性。
const (
	DevUsername = "dev_admin"
	DevGitHubID = "999999"
	DevEmail    = "dev@localhost"
)

// プレースホルダーのメールアドレスに使うドメイン。
const placeholderEmailDomain = "github.local"

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	DevAutoLogin bool // 開発環境でのみtrue
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	oauth       OAuthProvider // OAuth未設定時はnil
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	metrics     metrics.MetricsCollector
	config      ServiceConfig
	nowFunc     func() time.Time
	dummyDigest string
}

// NewService はServiceを生成する。oauthがnilの場合GitHubログインは無効になる。
func NewService(
	oauth OAuthProvider,
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	mc metrics.MetricsCollector,
	config ServiceConfig,
) *Service {
	// ユーザーが存在しない場合にも比較コストを揃えるためのダミー
	dummy, _ := HashPassword(uuid.NewString())
	return &Service{
		oauth:       oauth,
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		metrics:     mc,
		config:      config,
		nowFunc:     time.Now,
		dummyDigest: dummy,
	}
}

// OAuthEnabled はGitHubログインが利用可能かを返す。
func (s *Service) OAuthEnabled() bool {
	return s.oauth != nil
}

// GetLoginURL はGitHubの認可画面URLを生成する。
func (s *Service) GetLoginURL(state string) (string, error) {
	if s.oauth == nil {
		return "", ErrOAuthDisabled
	}
	return s.oauth.GetLoginURL(state), nil
}

// HandleCallback はOAuthコールバックを処理し、ユーザーを特定してセッションを発行する。
// 未登録ユーザーの場合は自動作成する。
func (s *Service) HandleCallback(ctx context.Context, code string, meta model.ClientMeta) (*model.User, *model.Session, error) {
	if s.oauth == nil {
		return nil, nil, ErrOAuthDisabled
	}

	// 1. 認可コードをトークンに交換し、プロフィールを取得
	profile, err := s.oauth.ExchangeCode(ctx, code)
	if err != nil {
		s.recordLogin("github", "failure")
		return nil, nil, fmt.Errorf("failed to exchange oauth code: %w", err)
	}

	// 2. プロフィールからユーザーを特定または作成
	user, err := s.FindOrCreateFromProfile(ctx, profile)
	if err != nil {
		s.recordLogin("github", "failure")
		return nil, nil, err
	}

	// 3. セッションを発行
	session, err := s.CreateSession(ctx, user.ID, meta)
	if err != nil {
		s.recordLogin("github", "failure")
		return nil, nil, err
	}

	s.recordLogin("github", "success")
	slog.Info("user logged in via github",
		slog.String("user_id", user.ID),
		slog.String("github_username", user.GitHubUsername),
	)
	return user, session, nil
}

// FindOrCreateFromProfile はGitHubプロフィールに対応するユーザーを返す。
// 同一プロフィールで並行に呼ばれても作成されるユーザーは1件のみ。
func (s *Service) FindOrCreateFromProfile(ctx context.Context, profile *model.ExternalProfile) (*model.User, error) {
	if profile == nil || profile.ID == "" || profile.Login == "" {
		return nil, model.NewValidationError("github", "profile is missing id or login")
	}

	// 1. github_idで既存ユーザーを検索
	existing, err := s.userRepo.FindByGitHubID(ctx, profile.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by github id: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	// 2. 新規ユーザーを作成（ローカルパスワードはランダム値で埋める）
	email := model.NormalizeEmail(profile.Email)
	if email == "" {
		email = model.NormalizeEmail(profile.Login + "@" + placeholderEmailDomain)
	}
	secret, err := randomHex(32)
	if err != nil {
		return nil, fmt.Errorf("failed to generate password: %w", err)
	}
	digest, err := HashPassword(secret)
	if err != nil {
		return nil, err
	}

	now := s.nowFunc()
	user := &model.User{
		ID:             uuid.NewString(),
		GitHubID:       profile.ID,
		GitHubUsername: profile.Login,
		Email:          email,
		PasswordDigest: digest,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err = s.userRepo.Create(ctx, user)
	switch {
	case err == nil:
		slog.Info("new user created",
			slog.String("user_id", user.ID),
			slog.String("github_username", user.GitHubUsername),
		)
		return user, nil

	case errors.Is(err, repository.ErrDuplicateGitHubID):
		// 3a. 並行ログインで先に作成された: 勝者のレコードを返す
		winner, findErr := s.userRepo.FindByGitHubID(ctx, profile.ID)
		if findErr != nil {
			return nil, fmt.Errorf("failed to re-read user by github id: %w", findErr)
		}
		if winner == nil {
			return nil, fmt.Errorf("user with github id %s vanished after conflict", profile.ID)
		}
		return winner, nil

	case errors.Is(err, repository.ErrDuplicateEmail):
		// 3b. 同じメールアドレスのローカルアカウントが存在する: 未連携なら紐付ける
		return s.linkByEmail(ctx, email, profile)

	default:
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
}

// linkByEmail はメールアドレスが一致する未連携ユーザーにGitHubアカウントを紐付ける。
func (s *Service) linkByEmail(ctx context.Context, email string, profile *model.ExternalProfile) (*model.User, error) {
	owner, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	if owner == nil {
		return nil, fmt.Errorf("user with email %s vanished after conflict", email)
	}
	if owner.GitHubID != "" {
		return nil, model.NewValidationError("email", "email address is already linked to another GitHub account")
	}

	attached, err := s.userRepo.AttachGitHub(ctx, owner.ID, profile.ID, profile.Login)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateGitHubID) {
			// 並行ログインで別レコードに先に紐付いた
			return s.userRepo.FindByGitHubID(ctx, profile.ID)
		}
		return nil, fmt.Errorf("failed to attach github account: %w", err)
	}
	if !attached {
		return nil, model.NewValidationError("email", "email address is already linked to another GitHub account")
	}

	owner.GitHubID = profile.ID
	owner.GitHubUsername = profile.Login
	slog.Info("github account linked to existing user",
		slog.String("user_id", owner.ID),
		slog.String("github_username", profile.Login),
	)
	return owner, nil
}

// Register はメールアドレスとパスワードでローカルユーザーを作成する。
func (s *Service) Register(ctx context.Context, email, password string) (*model.User, error) {
	email = model.NormalizeEmail(email)
	if email == "" {
		return nil, model.NewValidationError("email", "email address is required")
	}
	if err := validatePassword(password); err != nil {
		return nil, model.NewValidationError("password", err.Error())
	}

	digest, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	now := s.nowFunc()
	user := &model.User{
		ID:             uuid.NewString(),
		Email:          email,
		PasswordDigest: digest,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, model.NewValidationError("email", "email address is already taken")
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("local user registered", slog.String("user_id", user.ID))
	return user, nil
}

// Authenticate はメールアドレスとパスワードで認証し、セッションを発行する。
func (s *Service) Authenticate(ctx context.Context, email, password string, meta model.ClientMeta) (*model.User, *model.Session, error) {
	user, err := s.userRepo.FindByEmail(ctx, model.NormalizeEmail(email))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find user by email: %w", err)
	}

	digest := s.dummyDigest
	if user != nil {
		digest = user.PasswordDigest
	}
	if !CheckPassword(digest, password) || user == nil {
		s.recordLogin("password", "failure")
		return nil, nil, ErrInvalidCredentials
	}

	session, err := s.CreateSession(ctx, user.ID, meta)
	if err != nil {
		s.recordLogin("password", "failure")
		return nil, nil, err
	}

	s.recordLogin("password", "success")
	slog.Info("user logged in with password", slog.String("user_id", user.ID))
	return user, session, nil
}

// StartDevSession は開発用ユーザーを用意し、セッションを発行する。
func (s *Service) StartDevSession(ctx context.Context, meta model.ClientMeta) (*model.User, *model.Session, error) {
	if !s.config.DevAutoLogin {
		return nil, nil, ErrDevLoginDisabled
	}

	user, err := s.FindOrCreateFromProfile(ctx, &model.ExternalProfile{
		ID:    DevGitHubID,
		Login: DevUsername,
		Email: DevEmail,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to prepare development user: %w", err)
	}

	session, err := s.CreateSession(ctx, user.ID, meta)
	if err != nil {
		return nil, nil, err
	}

	s.recordLogin("development", "success")
	slog.Debug("development auto-login", slog.String("user_id", user.ID))
	return user, session, nil
}

// ResolveSession はセッションIDから現在のユーザーを解決する。
// セッションまたはユーザーが存在しない場合は(nil, nil, nil)を返す。
func (s *Service) ResolveSession(ctx context.Context, sessionID string) (*model.User, *model.Session, error) {
	if sessionID == "" {
		return nil, nil, nil
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, nil, nil
	}

	user, err := s.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, nil, nil
	}

	return user, session, nil
}

// Logout はセッションを破棄する。セッションIDが空の場合は何もしない。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("user logged out")
	return nil
}

// CreateSession はセッションを作成し永続化する。
func (s *Service) CreateSession(ctx context.Context, userID string, meta model.ClientMeta) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := s.nowFunc()
	session := &model.Session{
		ID:        sessionID,
		UserID:    userID,
		UserAgent: meta.UserAgent,
		IPAddress: meta.IPAddress,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

func (s *Service) recordLogin(provider, result string) {
	if s.metrics != nil {
		s.metrics.RecordLogin(provider, result)
	}
}
