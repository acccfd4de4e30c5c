package meetup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/trug/internal/model"
	"github.com/hitoshi/trug/internal/security"
)

// --- モック ---

type listCall struct {
	eventType     model.EventType
	offset, limit int
}

type mockMeetupRepo struct {
	upcoming  map[model.EventType]*model.Meetup
	ordered   []*model.Meetup
	archive   []model.MeetupWithTalks
	count     int
	err       error
	listCalls []listCall
}

func (m *mockMeetupRepo) FindByID(ctx context.Context, id int64) (*model.Meetup, error) {
	return nil, nil
}
func (m *mockMeetupRepo) FindNextUpcoming(ctx context.Context, eventType model.EventType, from time.Time) (*model.Meetup, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.upcoming[eventType], nil
}
func (m *mockMeetupRepo) ListOrdered(ctx context.Context, eventType model.EventType, offset, limit int) ([]*model.Meetup, error) {
	m.listCalls = append(m.listCalls, listCall{eventType, offset, limit})
	if m.err != nil {
		return nil, m.err
	}
	out := m.ordered
	if offset < len(out) {
		out = out[offset:]
	} else {
		out = nil
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
func (m *mockMeetupRepo) ListFormalWithTalks(ctx context.Context) ([]model.MeetupWithTalks, error) {
	return m.archive, m.err
}
func (m *mockMeetupRepo) Count(ctx context.Context) (int, error) { return m.count, m.err }

type mockTalkRepo struct {
	talks []*model.Talk
}

func (m *mockTalkRepo) List(ctx context.Context, limit int) ([]*model.Talk, error) {
	return m.talks, nil
}
func (m *mockTalkRepo) Count(ctx context.Context) (int, error) { return len(m.talks), nil }

func meetupOn(id int64, number int, date string, typ model.EventType) *model.Meetup {
	d, _ := time.Parse(DateLayout, date)
	return &model.Meetup{ID: id, Number: number, Date: d, EventType: typ, Description: "Spotkanie", Location: "Toruń"}
}

// --- テスト ---

func TestService_Home(t *testing.T) {
	repo := &mockMeetupRepo{
		upcoming: map[model.EventType]*model.Meetup{
			model.EventTypeFormal: meetupOn(10, 43, "2024-07-10", model.EventTypeFormal),
			model.EventTypeBar:    meetupOn(11, 0, "2024-06-28", model.EventTypeBar),
		},
		ordered: []*model.Meetup{
			meetupOn(10, 43, "2024-07-10", model.EventTypeFormal),
			meetupOn(9, 42, "2024-05-15", model.EventTypeFormal),
		},
	}
	svc := NewService(repo, &mockTalkRepo{}, security.NewTextSanitizer())

	home, err := svc.Home(context.Background())
	if err != nil {
		t.Fatalf("Home returned error: %v", err)
	}
	if home.NextFormalMeetup == nil || home.NextFormalMeetup.Number != 43 {
		t.Errorf("unexpected next formal meetup: %+v", home.NextFormalMeetup)
	}
	if home.NextBarMeetup == nil || home.NextBarMeetup.EventType != "bar" {
		t.Errorf("unexpected next bar meetup: %+v", home.NextBarMeetup)
	}
	if len(home.RecentMeetups) != 1 || home.RecentMeetups[0].Number != 42 {
		t.Errorf("expected recent meetups to skip the first formal one, got %+v", home.RecentMeetups)
	}
	want := listCall{model.EventTypeFormal, 1, RecentLimit}
	if len(repo.listCalls) != 1 || repo.listCalls[0] != want {
		t.Errorf("expected ListOrdered call %+v, got %+v", want, repo.listCalls)
	}
	if home.RecentMeetups[0].Date != "2024-05-15" {
		t.Errorf("unexpected date format: %q", home.RecentMeetups[0].Date)
	}
}

func TestService_Home_NothingScheduled(t *testing.T) {
	svc := NewService(&mockMeetupRepo{}, &mockTalkRepo{}, security.NewTextSanitizer())

	home, err := svc.Home(context.Background())
	if err != nil {
		t.Fatalf("Home returned error: %v", err)
	}
	if home.NextFormalMeetup != nil || home.NextBarMeetup != nil {
		t.Error("expected no upcoming meetups")
	}
	if home.RecentMeetups == nil {
		t.Error("recent meetups must encode as an empty list, not null")
	}
}

func TestService_Archive_SanitizesText(t *testing.T) {
	m := meetupOn(9, 42, "2024-05-15", model.EventTypeFormal)
	m.Description = `<p>Hanami <script>alert(1)</script>2.1</p>`
	repo := &mockMeetupRepo{
		archive: []model.MeetupWithTalks{{
			Meetup: *m,
			Talks: []*model.Talk{
				{ID: 1, MeetupID: 9, Title: "<b>Ractors</b>", SpeakerName: "Ala", VideoProvider: "vimeo", VideoID: "123"},
				{ID: 2, MeetupID: 9, Title: "Lightning talk", SpeakerName: "Ola"},
			},
		}},
	}
	svc := NewService(repo, &mockTalkRepo{}, security.NewTextSanitizer())

	archive, err := svc.Archive(context.Background())
	if err != nil {
		t.Fatalf("Archive returned error: %v", err)
	}
	if len(archive) != 1 {
		t.Fatalf("expected 1 meetup, got %d", len(archive))
	}
	if archive[0].Description != "Hanami 2.1" {
		t.Errorf("unexpected description: %q", archive[0].Description)
	}
	talks := archive[0].Talks
	if len(talks) != 2 || talks[0].Title != "Ractors" {
		t.Fatalf("unexpected talks: %+v", talks)
	}
	if talks[0].ThumbnailPath != "/video-thumbnails/vimeo/123" {
		t.Errorf("unexpected thumbnail path: %q", talks[0].ThumbnailPath)
	}
	if talks[1].ThumbnailPath != "" {
		t.Errorf("talk without video must not have a thumbnail path, got %q", talks[1].ThumbnailPath)
	}
}

func TestService_Dashboard(t *testing.T) {
	var ordered []*model.Meetup
	for i := 0; i < 8; i++ {
		ordered = append(ordered, meetupOn(int64(100-i), 50-i, "2024-01-01", model.EventTypeFormal))
	}
	repo := &mockMeetupRepo{ordered: ordered, count: 8}
	talks := &mockTalkRepo{talks: []*model.Talk{{ID: 1}, {ID: 2}, {ID: 3}}}
	svc := NewService(repo, talks, security.NewTextSanitizer())

	dash, err := svc.Dashboard(context.Background())
	if err != nil {
		t.Fatalf("Dashboard returned error: %v", err)
	}
	if dash.MeetupsCount != 8 || dash.TalksCount != 3 {
		t.Errorf("unexpected counts: meetups=%d talks=%d", dash.MeetupsCount, dash.TalksCount)
	}
	if dash.NextMeetup == nil || dash.NextMeetup.ID != 100 {
		t.Errorf("unexpected next meetup: %+v", dash.NextMeetup)
	}
	if len(dash.RecentMeetups) != RecentLimit || dash.RecentMeetups[0].ID != 99 {
		t.Errorf("unexpected recent meetups: %+v", dash.RecentMeetups)
	}
}

func TestService_Dashboard_Empty(t *testing.T) {
	svc := NewService(&mockMeetupRepo{}, &mockTalkRepo{}, security.NewTextSanitizer())

	dash, err := svc.Dashboard(context.Background())
	if err != nil {
		t.Fatalf("Dashboard returned error: %v", err)
	}
	if dash.NextMeetup != nil || len(dash.RecentMeetups) != 0 {
		t.Errorf("expected empty dashboard, got %+v", dash)
	}
}

func TestService_RepositoryErrorsAreWrapped(t *testing.T) {
	cause := errors.New("db down")
	svc := NewService(&mockMeetupRepo{err: cause}, &mockTalkRepo{}, security.NewTextSanitizer())
	ctx := context.Background()

	if _, err := svc.Home(ctx); !errors.Is(err, cause) {
		t.Errorf("Home: expected wrapped cause, got %v", err)
	}
	if _, err := svc.Archive(ctx); !errors.Is(err, cause) {
		t.Errorf("Archive: expected wrapped cause, got %v", err)
	}
	if _, err := svc.ListMeetups(ctx); !errors.Is(err, cause) {
		t.Errorf("ListMeetups: expected wrapped cause, got %v", err)
	}
}

func TestService_ListTalks(t *testing.T) {
	talks := &mockTalkRepo{talks: []*model.Talk{
		{ID: 2, Title: "Ruby 3.4", SpeakerName: "Ala", VideoProvider: "youtube", VideoID: "abc"},
	}}
	svc := NewService(&mockMeetupRepo{}, talks, security.NewTextSanitizer())

	got, err := svc.ListTalks(context.Background())
	if err != nil {
		t.Fatalf("ListTalks returned error: %v", err)
	}
	if len(got) != 1 || got[0].ThumbnailPath != "/video-thumbnails/youtube/abc" {
		t.Errorf("unexpected talks: %+v", got)
	}
}
