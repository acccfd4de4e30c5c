package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/trug/internal/model"
)

const userColumns = `id, github_id, github_username, email_address, password_digest, created_at, updated_at`

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

func scanUser(row interface{ Scan(...any) error }) (*model.User, error) {
	user := &model.User{}
	var githubID, githubUsername sql.NullString
	err := row.Scan(&user.ID, &githubID, &githubUsername, &user.Email, &user.PasswordDigest, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, err
	}
	user.GitHubID = githubID.String
	user.GitHubUsername = githubUsername.String
	return user, nil
}

func (r *PostgresUserRepo) findOne(ctx context.Context, where string, arg any) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE `+where,
		arg,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	user, err := r.findOne(ctx, "id = $1", id)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}
	return user, nil
}

// FindByGitHubID はGitHubの数値IDでユーザーを検索する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByGitHubID(ctx context.Context, githubID string) (*model.User, error) {
	user, err := r.findOne(ctx, "github_id = $1", githubID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by github id: %w", err)
	}
	return user, nil
}

// FindByEmail は正規化済みメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	user, err := r.findOne(ctx, "email_address = $1", model.NormalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	return user, nil
}

// Create はユーザーを作成する。
// 一意制約違反はErrDuplicateGitHubID / ErrDuplicateEmailとして返す。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	user.Email = model.NormalizeEmail(user.Email)

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, github_id, github_username, email_address, password_digest, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		user.ID, nullString(user.GitHubID), nullString(user.GitHubUsername),
		user.Email, user.PasswordDigest, user.CreatedAt, user.UpdatedAt,
	)
	if constraint, ok := uniqueViolation(err); ok {
		switch constraint {
		case "users_github_id_key":
			return fmt.Errorf("failed to insert user: %w", ErrDuplicateGitHubID)
		case "users_email_address_key":
			return fmt.Errorf("failed to insert user: %w", ErrDuplicateEmail)
		}
	}
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// AttachGitHub は未連携のユーザーにGitHubアカウントを紐付ける。
func (r *PostgresUserRepo) AttachGitHub(ctx context.Context, userID, githubID, githubUsername string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET github_id = $2, github_username = $3, updated_at = now()
		 WHERE id = $1 AND github_id IS NULL`,
		userID, githubID, githubUsername,
	)
	if _, ok := uniqueViolation(err); ok {
		return false, fmt.Errorf("failed to attach github account: %w", ErrDuplicateGitHubID)
	}
	if err != nil {
		return false, fmt.Errorf("failed to attach github account: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected == 1, nil
}

// DeleteByID は指定IDのユーザーを削除する。
// 関連するsessionsはCASCADE削除される。
func (r *PostgresUserRepo) DeleteByID(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM users WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return model.NewNotFoundError("user", id)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
