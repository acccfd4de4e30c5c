// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/trug/internal/model"
)

// UserRepository はユーザー（identity）データの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByGitHubID はGitHubの数値IDでユーザーを検索する。見つからない場合はnilを返す。
	FindByGitHubID(ctx context.Context, githubID string) (*model.User, error)

	// FindByEmail は正規化済みメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成する。
	// github_idまたはemail_addressの一意制約に違反した場合は
	// ErrDuplicateGitHubID / ErrDuplicateEmail をラップして返す。
	Create(ctx context.Context, user *model.User) error

	// AttachGitHub は未連携のユーザーにGitHubアカウントを紐付ける。
	// 既に別のGitHub IDが紐付いている場合はfalseを返す。
	AttachGitHub(ctx context.Context, userID, githubID, githubUsername string) (bool, error)

	// DeleteByID は指定IDのユーザーを削除する。
	// 関連するsessionsはCASCADE削除され、attendances.user_idはNULLになる。
	DeleteByID(ctx context.Context, id string) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。存在しない場合もエラーにしない。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
	// DeleteCreatedBefore は指定時刻より前に作成されたセッションを削除し、削除件数を返す。
	DeleteCreatedBefore(ctx context.Context, before time.Time) (int64, error)
}

// MeetupRepository はミートアップデータの永続化インターフェース。
//
// "ordered" は通常回を先に、その中で開催日の降順に並べる順序を指す。
type MeetupRepository interface {
	// FindByID は指定IDのミートアップを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.Meetup, error)

	// FindNextUpcoming はfrom以降で最も近いミートアップを返す。
	// eventTypeが空文字の場合は種別を問わない。見つからない場合はnilを返す。
	FindNextUpcoming(ctx context.Context, eventType model.EventType, from time.Time) (*model.Meetup, error)

	// ListOrdered はordered順でミートアップを返す。
	// eventTypeが空文字の場合は種別を問わない。limitが0以下の場合は全件返す。
	ListOrdered(ctx context.Context, eventType model.EventType, offset, limit int) ([]*model.Meetup, error)

	// ListFormalWithTalks は通常回をordered順で発表付きで返す。
	ListFormalWithTalks(ctx context.Context) ([]model.MeetupWithTalks, error)

	// Count はミートアップの総数を返す。
	Count(ctx context.Context) (int, error)
}

// TalkRepository は発表データの永続化インターフェース。
type TalkRepository interface {
	// List は発表を新しい順に返す。limitが0以下の場合は全件返す。
	List(ctx context.Context, limit int) ([]*model.Talk, error)
	// Count は発表の総数を返す。
	Count(ctx context.Context) (int, error)
}

// AttendanceRepository は参加表明データの永続化インターフェース。
type AttendanceRepository interface {
	// Upsert は(meetup_id, github_username)をキーに参加表明を作成または更新する。
	// ID・タイムスタンプは保存後の値で上書きされる。
	Upsert(ctx context.Context, attendance *model.Attendance) error

	// FindByMeetupAndUsername は参加表明を取得する。見つからない場合はnilを返す。
	FindByMeetupAndUsername(ctx context.Context, meetupID int64, githubUsername string) (*model.Attendance, error)

	// CountByStatus はミートアップごとの状態別件数を返す。
	CountByStatus(ctx context.Context, meetupID int64) (map[model.AttendanceStatus]int, error)
}
