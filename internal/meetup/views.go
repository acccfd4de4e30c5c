package meetup

import (
	"github.com/hitoshi/trug/internal/model"
)

// DateLayout はJSONに出力する開催日の書式。
const DateLayout = "2006-01-02"

// MeetupView はJSON応答用のミートアップ表現。
type MeetupView struct {
	ID          int64      `json:"id"`
	Number      int        `json:"number,omitempty"`
	Date        string     `json:"date"`
	Description string     `json:"description"`
	Location    string     `json:"location"`
	EventType   string     `json:"event_type"`
	Talks       []TalkView `json:"talks,omitempty"`
}

// TalkView はJSON応答用の発表表現。
type TalkView struct {
	ID              int64  `json:"id"`
	MeetupID        int64  `json:"meetup_id"`
	Title           string `json:"title"`
	SpeakerName     string `json:"speaker_name"`
	SpeakerHomepage string `json:"speaker_homepage,omitempty"`
	SlidesURL       string `json:"slides_url,omitempty"`
	SourceCodeURL   string `json:"source_code_url,omitempty"`
	VideoProvider   string `json:"video_provider,omitempty"`
	VideoID         string `json:"video_id,omitempty"`
	VideoThumb      string `json:"video_thumb,omitempty"`
	// ThumbnailPath はサムネイル解決エンドポイントのパス。動画がない場合は空。
	ThumbnailPath string `json:"thumbnail_path,omitempty"`
}

// HomeView はトップページの応答。
type HomeView struct {
	NextFormalMeetup *MeetupView  `json:"next_formal_meetup"`
	NextBarMeetup    *MeetupView  `json:"next_bar_meetup"`
	RecentMeetups    []MeetupView `json:"recent_meetups"`
}

// DashboardView は管理ダッシュボードの応答。
type DashboardView struct {
	MeetupsCount  int          `json:"meetups_count"`
	TalksCount    int          `json:"talks_count"`
	NextMeetup    *MeetupView  `json:"next_meetup"`
	RecentMeetups []MeetupView `json:"recent_meetups"`
}

func (s *Service) meetupView(m *model.Meetup) *MeetupView {
	if m == nil {
		return nil
	}
	return &MeetupView{
		ID:          m.ID,
		Number:      m.Number,
		Date:        m.Date.Format(DateLayout),
		Description: s.sanitizer.Sanitize(m.Description),
		Location:    s.sanitizer.Sanitize(m.Location),
		EventType:   string(m.EventType),
	}
}

func (s *Service) meetupViews(meetups []*model.Meetup) []MeetupView {
	views := make([]MeetupView, 0, len(meetups))
	for _, m := range meetups {
		views = append(views, *s.meetupView(m))
	}
	return views
}

func (s *Service) talkViews(talks []*model.Talk) []TalkView {
	views := make([]TalkView, 0, len(talks))
	for _, t := range talks {
		v := TalkView{
			ID:              t.ID,
			MeetupID:        t.MeetupID,
			Title:           s.sanitizer.Sanitize(t.Title),
			SpeakerName:     s.sanitizer.Sanitize(t.SpeakerName),
			SpeakerHomepage: t.SpeakerHomepage,
			SlidesURL:       t.SlidesURL,
			SourceCodeURL:   t.SourceCodeURL,
			VideoProvider:   t.VideoProvider,
			VideoID:         t.VideoID,
			VideoThumb:      t.VideoThumb,
		}
		if t.VideoProvider != "" && t.VideoID != "" {
			v.ThumbnailPath = "/video-thumbnails/" + t.VideoProvider + "/" + t.VideoID
		}
		views = append(views, v)
	}
	return views
}
