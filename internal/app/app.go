package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/trug/internal/attendance"
	"github.com/hitoshi/trug/internal/auth"
	"github.com/hitoshi/trug/internal/cache"
	"github.com/hitoshi/trug/internal/config"
	"github.com/hitoshi/trug/internal/database"
	"github.com/hitoshi/trug/internal/handler"
	"github.com/hitoshi/trug/internal/logger"
	"github.com/hitoshi/trug/internal/meetup"
	"github.com/hitoshi/trug/internal/metrics"
	"github.com/hitoshi/trug/internal/middleware"
	"github.com/hitoshi/trug/internal/repository"
	"github.com/hitoshi/trug/internal/security"
	"github.com/hitoshi/trug/internal/session"
	"github.com/hitoshi/trug/internal/user"
	"github.com/hitoshi/trug/internal/video"
	"github.com/hitoshi/trug/internal/worker/cleanup"
)

// shutdownTimeout はグレースフルシャットダウンの制限時間。
const shutdownTimeout = 30 * time.Second

// Init はアプリケーションの初期化を行う。
// .envと環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. .envがあれば読み込む（既存の環境変数は上書きしない）
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	// 3. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 4. 設定されたレベルでログを再構成
	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))
	cfg.LogDegradedFeatures()

	return cfg, nil
}

// connectDatabase はDBに接続し、疎通確認が取れるまで待つ。
func connectDatabase(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	db, err := database.Connect(ctx, cfg.DatabaseURL, cfg.DatabaseConnectTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	slog.Info("database connection established")
	return db, nil
}

// newCache はREDIS_URLが設定されていればRedisを、なければプロセス内キャッシュを返す。
func newCache(ctx context.Context, cfg *config.Config) (cache.Cache, func(), error) {
	if cfg.RedisURL == "" {
		mc := cache.NewMemoryCache()
		janitorCtx, stop := context.WithCancel(ctx)
		go mc.RunJanitor(janitorCtx, 10*time.Minute)
		return mc, stop, nil
	}

	rc, err := cache.NewRedisCache(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to configure redis: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rc.Ping(pingCtx); err != nil {
		// go-redisは再接続するため起動は継続する
		slog.Warn("redis not reachable at startup", slog.String("error", err.Error()))
	}
	return rc, func() { rc.Close() }, nil
}

// newOAuthProvider はOAuth資格情報がある場合のみGitHubプロバイダを返す。
func newOAuthProvider(cfg *config.Config) (auth.OAuthProvider, error) {
	if !cfg.OAuthEnabled() {
		return nil, nil
	}
	provider, err := auth.NewGitHubOAuthProvider(auth.GitHubOAuthConfig{
		ClientID:     cfg.GitHubClientID,
		ClientSecret: cfg.GitHubClientSecret,
		RedirectURL:  cfg.GitHubRedirectURL,
		Timeout:      cfg.OAuthTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to configure github oauth: %w", err)
	}
	return provider, nil
}

// newAuthorizer は許可リストと、GITHUB_TOKENがあればGitHub APIによる判定手段を組み立てる。
func newAuthorizer(cfg *config.Config, c cache.Cache, mc metrics.MetricsCollector) (*auth.Authorizer, error) {
	strategies := []auth.Strategy{auth.NewAllowListStrategy(cfg.AdminUsernames)}

	// GITHUB_REPOが不正な場合は許可リストのみで判定する（LogDegradedFeaturesで警告済み）
	if owner, name, ok := cfg.RepoOwnerAndName(); cfg.GitHubAPIEnabled() && ok {
		client, err := auth.NewGitHubRepoClient(auth.GitHubRepoConfig{
			Token:      cfg.GitHubToken,
			Owner:      owner,
			Repo:       name,
			APIBaseURL: cfg.GitHubAPIURL,
		}, mc)
		if err != nil {
			return nil, fmt.Errorf("failed to configure github api client: %w", err)
		}
		strategies = append(strategies, auth.GitHubStrategies(client)...)
	}

	authorizer := auth.NewAuthorizer(auth.AuthorizerConfig{
		Development: cfg.IsDevelopment(),
		Timeout:     cfg.AdminCheckTimeout,
		CacheTTL:    cfg.AdminCacheTTL,
	}, c, mc, strategies...)
	slog.Info("admin strategies configured", slog.Any("strategies", authorizer.StrategyNames()))
	return authorizer, nil
}

// newMetrics はGo・プロセスの標準メトリクスを含むレジストリとCollectorを生成する。
func newMetrics() (*prometheus.Registry, *metrics.Collector) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, metrics.NewCollector(reg)
}

// runServe はWebサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// ctxがキャンセルされるとグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	// 1. DB接続
	db, err := connectDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	// 2. 基盤（メトリクス、キャッシュ）
	registry, mc := newMetrics()
	c, closeCache, err := newCache(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeCache()

	// 3. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	meetupRepo := repository.NewPostgresMeetupRepo(db)
	talkRepo := repository.NewPostgresTalkRepo(db)
	attendanceRepo := repository.NewPostgresAttendanceRepo(db)

	// 4. ドメインサービスの初期化
	oauthProvider, err := newOAuthProvider(cfg)
	if err != nil {
		return err
	}
	authService := auth.NewService(oauthProvider, userRepo, sessionRepo, mc, auth.ServiceConfig{
		DevAutoLogin: cfg.IsDevelopment() && cfg.DevAutoLogin,
	})
	authorizer, err := newAuthorizer(cfg, c, mc)
	if err != nil {
		return err
	}

	guard := security.NewURLGuard()
	thumbnails := video.NewResolver(video.ResolverConfig{
		Timeout:  cfg.ThumbnailTimeout,
		CacheTTL: cfg.ThumbnailCacheTTL,
	}, guard, c)

	// 5. ルーターの構築
	cookieOpts := session.CookieOptions{Secure: cfg.CookieSecure, Domain: cfg.CookieDomain}
	sessionCookieOpts := cookieOpts
	sessionCookieOpts.MaxAge = cfg.SessionMaxAge

	rateLimiter := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitLogin), mc)
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		Config: handler.RouterConfig{
			Production:   cfg.IsProduction(),
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
			DevAutoLogin: cfg.IsDevelopment() && cfg.DevAutoLogin,
		},
		Logger:          slog.Default(),
		Metrics:         mc,
		MetricsHandler:  metrics.Handler(registry),
		HealthChecker:   db,
		RateLimiter:     rateLimiter,
		Blocklist:       middleware.DefaultBlocklistConfig(),
		Cookies:         session.NewCookieCodec(cfg.SessionSecret, sessionCookieOpts),
		Store:           session.NewStore(cfg.SessionSecret, cookieOpts),
		SessionResolver: authService,
		AdminChecker:    authorizer,

		AuthService:       authService,
		AttendanceService: attendance.NewService(meetupRepo, attendanceRepo, mc),
		MeetupService:     meetup.NewService(meetupRepo, talkRepo, security.NewTextSanitizer()),
		ThumbnailResolver: thumbnails,
		AccountService:    user.NewService(userRepo, sessionRepo),
	})

	// 6. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("web server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down web server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("web server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// 期限切れセッションの削除を起動直後と以後SESSION_CLEANUP_INTERVALごとに実行する。
func runWorker(ctx context.Context, cfg *config.Config) error {
	db, err := connectDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	_, mc := newMetrics()
	job := cleanup.NewSessionCleanupJob(
		repository.NewPostgresSessionRepo(db),
		time.Duration(cfg.SessionMaxAge)*time.Second,
		mc,
		slog.Default(),
	)

	slog.Info("worker starting",
		slog.Duration("cleanup_interval", cfg.SessionCleanupInterval),
		slog.Int("session_max_age", cfg.SessionMaxAge),
	)

	// ctxがキャンセルされるまでブロックする
	job.Start(ctx, cfg.SessionCleanupInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrateUp はすべての未適用マイグレーションを順番に適用する。
func runMigrateUp(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runMigrateDown は指定ステップ数だけマイグレーションを戻す。
func runMigrateDown(cfg *config.Config, steps int) error {
	if err := database.RollbackMigrations(cfg.DatabaseURL, steps); err != nil {
		return fmt.Errorf("rollback failed: %w", err)
	}
	slog.Info("database migrations rolled back", slog.Int("steps", steps))
	return nil
}

// runMigrateVersion は現在のスキーマバージョンを出力する。
func runMigrateVersion(w io.Writer, cfg *config.Config) error {
	version, dirty, err := database.MigrationVersion(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to read migration version: %w", err)
	}
	fmt.Fprintf(w, "version=%d dirty=%t\n", version, dirty)
	return nil
}

// runCreateUser はローカル認証用のユーザーを作成する。
func runCreateUser(ctx context.Context, w io.Writer, cfg *config.Config, email, password string) error {
	db, err := connectDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	svc := auth.NewService(nil, repository.NewPostgresUserRepo(db), repository.NewPostgresSessionRepo(db), nil, auth.ServiceConfig{})
	u, err := svc.Register(ctx, email, password)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	fmt.Fprintf(w, "created user %s <%s>\n", u.ID, u.Email)
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /up エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(ctx context.Context, port string) error {
	url := fmt.Sprintf("http://localhost:%s/up", port)
	client := &http.Client{Timeout: 5 * time.Second}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build health check request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
