// Package app はコマンドラインの解析と依存関係のワイヤリングを行う。
package app

import (
	"context"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hitoshi/trug/internal/config"
)

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はWebサーバーモードで起動することを示す。
	CommandServe Command = "serve"
	// CommandWorker はワーカーモードで起動することを示す。
	CommandWorker Command = "worker"
	// CommandMigrate はデータベースマイグレーションを実行することを示す。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
	// CommandCreateUser はローカル認証用のユーザーを作成することを示す。
	CommandCreateUser Command = "create-user"
)

// Run はアプリケーションのメインエントリーポイント。
// argsにはos.Args[1:]を渡す。SIGINTまたはSIGTERMでコンテキストがキャンセルされる。
func Run(w io.Writer, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := NewRootCommand(w)
	root.SetArgs(args)
	root.SetOut(w)
	root.SetErr(w)
	return root.ExecuteContext(ctx)
}

// NewRootCommand はtrugのルートコマンドを生成する。
// サブコマンド未指定の場合はserveとして動作する。
func NewRootCommand(w io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "trug",
		Short:         "TRUG meetup site",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE:          withConfig(w, runServe),
	}

	root.AddCommand(
		&cobra.Command{
			Use:   string(CommandServe),
			Short: "Start the web server",
			Args:  cobra.NoArgs,
			RunE:  withConfig(w, runServe),
		},
		&cobra.Command{
			Use:   string(CommandWorker),
			Short: "Run background jobs (session cleanup)",
			Args:  cobra.NoArgs,
			RunE:  withConfig(w, runWorker),
		},
		newMigrateCommand(w),
		newHealthcheckCommand(),
		newCreateUserCommand(w),
	)
	return root
}

// withConfig は設定を読み込んでから処理を実行するRunEを返す。
func withConfig(w io.Writer, run func(ctx context.Context, cfg *config.Config) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		cfg, err := Init(w)
		if err != nil {
			return err
		}
		return run(cmd.Context(), cfg)
	}
}

func newMigrateCommand(w io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   string(CommandMigrate),
		Short: "Apply database migrations",
		Args:  cobra.NoArgs,
		RunE: withConfig(w, func(_ context.Context, cfg *config.Config) error {
			return runMigrateUp(cfg)
		}),
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: withConfig(w, func(_ context.Context, cfg *config.Config) error {
				return runMigrateUp(cfg)
			}),
		},
		&cobra.Command{
			Use:   "down [steps]",
			Short: "Roll back migrations (default 1 step)",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				steps := 1
				if len(args) == 1 {
					n, err := strconv.Atoi(args[0])
					if err != nil {
						return err
					}
					steps = n
				}
				cfg, err := Init(w)
				if err != nil {
					return err
				}
				return runMigrateDown(cfg, steps)
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the current schema version",
			Args:  cobra.NoArgs,
			RunE: withConfig(w, func(_ context.Context, cfg *config.Config) error {
				return runMigrateVersion(w, cfg)
			}),
		},
	)
	return cmd
}

// newHealthcheckCommand は軽量サブコマンドのため、設定の読み込みを行わない。
func newHealthcheckCommand() *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   string(CommandHealthcheck),
		Short: "Check that the local web server responds on /up",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHealthcheck(cmd.Context(), port)
		},
	}
	cmd.Flags().StringVar(&port, "port", defaultPort(), "server port")
	return cmd
}

func defaultPort() string {
	if port := os.Getenv("SERVER_PORT"); port != "" {
		return port
	}
	return "8080"
}

func newCreateUserCommand(w io.Writer) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   string(CommandCreateUser),
		Short: "Create a user with local email/password credentials",
		Args:  cobra.NoArgs,
		RunE: withConfig(w, func(ctx context.Context, cfg *config.Config) error {
			return runCreateUser(ctx, w, cfg, email, password)
		}),
	}
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&password, "password", "", "password (at least 8 characters)")
	cmd.MarkFlagRequired("email")
	cmd.MarkFlagRequired("password")
	return cmd
}
