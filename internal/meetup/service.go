// Package meetup はミートアップ一覧・アーカイブ・管理ダッシュボードの読み取りロジックを提供する。
package meetup

import (
	"context"
	"fmt"
	"time"

	"github.com/hitoshi/trug/internal/model"
	"github.com/hitoshi/trug/internal/repository"
	"github.com/hitoshi/trug/internal/security"
)

const (
	// RecentLimit はトップページと管理ダッシュボードに並べる過去回の件数。
	RecentLimit = 5
)

// Service はミートアップ情報の読み取りサービス。
// 返却するビューのテキストはサニタイズ済み。
type Service struct {
	meetups   repository.MeetupRepository
	talks     repository.TalkRepository
	sanitizer security.TextSanitizerService
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(meetups repository.MeetupRepository, talks repository.TalkRepository, sanitizer security.TextSanitizerService) *Service {
	return &Service{
		meetups:   meetups,
		talks:     talks,
		sanitizer: sanitizer,
		now:       time.Now,
	}
}

// Home はトップページ用の情報を返す。
// 直近の通常回と飲み会回、および最新の通常回を除いた過去の通常回を含む。
func (s *Service) Home(ctx context.Context) (*HomeView, error) {
	today := startOfDay(s.now())

	nextFormal, err := s.meetups.FindNextUpcoming(ctx, model.EventTypeFormal, today)
	if err != nil {
		return nil, fmt.Errorf("failed to find next formal meetup: %w", err)
	}
	nextBar, err := s.meetups.FindNextUpcoming(ctx, model.EventTypeBar, today)
	if err != nil {
		return nil, fmt.Errorf("failed to find next bar meetup: %w", err)
	}
	recent, err := s.meetups.ListOrdered(ctx, model.EventTypeFormal, 1, RecentLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent meetups: %w", err)
	}

	return &HomeView{
		NextFormalMeetup: s.meetupView(nextFormal),
		NextBarMeetup:    s.meetupView(nextBar),
		RecentMeetups:    s.meetupViews(recent),
	}, nil
}

// Archive は通常回を新しい順に発表付きで返す。
func (s *Service) Archive(ctx context.Context) ([]MeetupView, error) {
	meetups, err := s.meetups.ListFormalWithTalks(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list archive: %w", err)
	}

	views := make([]MeetupView, 0, len(meetups))
	for i := range meetups {
		v := s.meetupView(&meetups[i].Meetup)
		v.Talks = s.talkViews(meetups[i].Talks)
		views = append(views, *v)
	}
	return views, nil
}

// Dashboard は管理ダッシュボード用の集計を返す。
func (s *Service) Dashboard(ctx context.Context) (*DashboardView, error) {
	meetupsCount, err := s.meetups.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count meetups: %w", err)
	}
	talksCount, err := s.talks.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count talks: %w", err)
	}

	// ordered順の先頭を「次回」、続くRecentLimit件を「最近」として扱う
	head, err := s.meetups.ListOrdered(ctx, "", 0, RecentLimit+1)
	if err != nil {
		return nil, fmt.Errorf("failed to list meetups: %w", err)
	}

	view := &DashboardView{
		MeetupsCount:  meetupsCount,
		TalksCount:    talksCount,
		RecentMeetups: []MeetupView{},
	}
	if len(head) > 0 {
		view.NextMeetup = s.meetupView(head[0])
		view.RecentMeetups = s.meetupViews(head[1:])
	}
	return view, nil
}

// ListMeetups は全ミートアップをordered順で返す。
func (s *Service) ListMeetups(ctx context.Context) ([]MeetupView, error) {
	meetups, err := s.meetups.ListOrdered(ctx, "", 0, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list meetups: %w", err)
	}
	return s.meetupViews(meetups), nil
}

// ListTalks は全発表を新しい順に返す。
func (s *Service) ListTalks(ctx context.Context) ([]TalkView, error) {
	talks, err := s.talks.List(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list talks: %w", err)
	}
	return s.talkViews(talks), nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
