// Package attendance はミートアップへの参加表明（RSVP）のドメインロジックを提供する。
package attendance

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/hitoshi/trug/internal/metrics"
	"github.com/hitoshi/trug/internal/model"
	"github.com/hitoshi/trug/internal/repository"
)

// MissingGitHubMessage はGitHub未連携の利用者が参加表明した場合のメッセージ。
const MissingGitHubMessage = "Nie znaleziono Twojego profilu GitHub."

// Overview は参加表明フォーム用の情報。
type Overview struct {
	Meetup *model.Meetup
	Counts map[model.AttendanceStatus]int
	// Mine は現在の利用者の参加表明。未ログインまたは未回答の場合はnil。
	Mine *model.Attendance
}

// Service は参加表明のサービス層。
type Service struct {
	meetups     repository.MeetupRepository
	attendances repository.AttendanceRepository
	metrics     metrics.MetricsCollector
	now         func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(meetups repository.MeetupRepository, attendances repository.AttendanceRepository, mc metrics.MetricsCollector) *Service {
	return &Service{
		meetups:     meetups,
		attendances: attendances,
		metrics:     mc,
		now:         time.Now,
	}
}

// TargetMeetup は参加表明の対象となる直近のミートアップを返す。
// 本日以降の開催がない場合はNotFoundErrorを返す。
func (s *Service) TargetMeetup(ctx context.Context) (*model.Meetup, error) {
	m, err := s.meetups.FindNextUpcoming(ctx, "", startOfDay(s.now()))
	if err != nil {
		return nil, fmt.Errorf("failed to find target meetup: %w", err)
	}
	if m == nil {
		return nil, model.NewNotFoundError("meetup", "upcoming")
	}
	return m, nil
}

// Overview は対象ミートアップと状態別件数、利用者自身の回答を返す。
// userがnilの場合はMineを空のまま返す。
func (s *Service) Overview(ctx context.Context, user *model.User) (*Overview, error) {
	m, err := s.TargetMeetup(ctx)
	if err != nil {
		return nil, err
	}

	counts, err := s.attendances.CountByStatus(ctx, m.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to count attendances: %w", err)
	}

	ov := &Overview{Meetup: m, Counts: counts}
	if user.HasGitHub() {
		mine, err := s.attendances.FindByMeetupAndUsername(ctx, m.ID, user.GitHubUsername)
		if err != nil {
			return nil, fmt.Errorf("failed to find attendance: %w", err)
		}
		ov.Mine = mine
	}
	return ov, nil
}

// Submit は利用者の参加表明を登録または更新する。
// 同じ(meetup, github_username)への再送信は状態の上書きになる。
func (s *Service) Submit(ctx context.Context, user *model.User, meetupID int64, status model.AttendanceStatus) (*model.Attendance, error) {
	// 1. 入力の検証
	if user == nil || user.GitHubUsername == "" {
		return nil, model.NewValidationError("github_username", MissingGitHubMessage)
	}
	if !status.Valid() {
		return nil, model.NewValidationError("status", "nieprawidłowy status: "+strconv.Itoa(int(status)))
	}

	// 2. 対象ミートアップの存在確認
	m, err := s.meetups.FindByID(ctx, meetupID)
	if err != nil {
		return nil, fmt.Errorf("failed to find meetup: %w", err)
	}
	if m == nil {
		return nil, model.NewNotFoundError("meetup", strconv.FormatInt(meetupID, 10))
	}

	// 3. 一意制約に対するupsert
	a := &model.Attendance{
		MeetupID:       m.ID,
		UserID:         user.ID,
		GitHubUsername: user.GitHubUsername,
		Status:         status,
	}
	if err := s.attendances.Upsert(ctx, a); err != nil {
		return nil, fmt.Errorf("failed to save attendance: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordRSVP(status.String())
	}
	slog.Info("attendance recorded",
		slog.Int64("meetup_id", m.ID),
		slog.String("github_username", user.GitHubUsername),
		slog.String("status", status.String()),
	)
	return a, nil
}

func startOfDay(t time.Time) time.Time {
	y, mo, d := t.Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, t.Location())
}
