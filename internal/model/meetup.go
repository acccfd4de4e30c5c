package model

import "time"

// EventType はミートアップの種別を表す。
type EventType string

const (
	EventTypeFormal EventType = "formal" // 発表のある通常回
	EventTypeBar    EventType = "bar"    // 飲み会回
)

// Valid は定義済みの種別かどうかを返す。
func (t EventType) Valid() bool {
	return t == EventTypeFormal || t == EventTypeBar
}

// Meetup はミートアップ開催情報を表す。
type Meetup struct {
	ID          int64
	Number      int
	Date        time.Time
	Description string
	Location    string
	EventType   EventType
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Talk はミートアップでの発表を表す。
type Talk struct {
	ID              int64
	MeetupID        int64
	Title           string
	SpeakerName     string
	SpeakerHomepage string
	SlidesURL       string
	SourceCodeURL   string
	VideoProvider   string // youtube | vimeo | 空文字
	VideoID         string
	VideoThumb      string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// MeetupWithTalks はアーカイブ表示用にミートアップと発表を結合した構造体。
type MeetupWithTalks struct {
	Meetup
	Talks []*Talk
}
