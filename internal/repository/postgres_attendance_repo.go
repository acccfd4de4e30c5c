package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/trug/internal/model"
)

// PostgresAttendanceRepo はPostgreSQLを使用した参加表明リポジトリ。
type PostgresAttendanceRepo struct {
	db *sql.DB
}

// NewPostgresAttendanceRepo はPostgresAttendanceRepoを生成する。
func NewPostgresAttendanceRepo(db *sql.DB) *PostgresAttendanceRepo {
	return &PostgresAttendanceRepo{db: db}
}

// Upsert は(meetup_id, github_username)をキーに参加表明を作成または更新する。
// 同時送信でも一意制約によって1行に収束する。
func (r *PostgresAttendanceRepo) Upsert(ctx context.Context, a *model.Attendance) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO attendances (meetup_id, user_id, github_username, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, now(), now())
		 ON CONFLICT (meetup_id, github_username)
		 DO UPDATE SET status = EXCLUDED.status,
		               user_id = COALESCE(EXCLUDED.user_id, attendances.user_id),
		               updated_at = now()
		 RETURNING id, created_at, updated_at`,
		a.MeetupID, nullString(a.UserID), a.GitHubUsername, int(a.Status),
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert attendance: %w", err)
	}
	return nil
}

// FindByMeetupAndUsername は参加表明を取得する。見つからない場合はnilを返す。
func (r *PostgresAttendanceRepo) FindByMeetupAndUsername(ctx context.Context, meetupID int64, githubUsername string) (*model.Attendance, error) {
	a := &model.Attendance{}
	var userID sql.NullString
	var status int
	err := r.db.QueryRowContext(ctx,
		`SELECT id, meetup_id, user_id, github_username, status, created_at, updated_at
		 FROM attendances
		 WHERE meetup_id = $1 AND github_username = $2`,
		meetupID, githubUsername,
	).Scan(&a.ID, &a.MeetupID, &userID, &a.GitHubUsername, &status, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find attendance: %w", err)
	}
	a.UserID = userID.String
	a.Status = model.AttendanceStatus(status)
	return a, nil
}

// CountByStatus はミートアップの状態別件数を返す。
func (r *PostgresAttendanceRepo) CountByStatus(ctx context.Context, meetupID int64) (map[model.AttendanceStatus]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT status, count(*) FROM attendances WHERE meetup_id = $1 GROUP BY status`,
		meetupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to count attendances: %w", err)
	}
	defer rows.Close()

	counts := make(map[model.AttendanceStatus]int)
	for rows.Next() {
		var status, n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan attendance count: %w", err)
		}
		counts[model.AttendanceStatus(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate attendance counts: %w", err)
	}
	return counts, nil
}

// compile-time interface check
var _ AttendanceRepository = (*PostgresAttendanceRepo)(nil)
