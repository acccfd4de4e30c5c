package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/trug/internal/model"
)

const (
	meetupColumns = `id, COALESCE(number, 0), date, description, location, event_type, created_at, updated_at`
	// 通常回を先に、開催日の降順
	orderedClause = `ORDER BY CASE WHEN event_type = 'bar' THEN 1 ELSE 0 END, date DESC, id DESC`
	talkColumns   = `id, meetup_id, title, speaker_name, speaker_homepage, slides_url, source_code_url,
		video_provider, video_id, video_thumb, created_at, updated_at`
)

// PostgresMeetupRepo はPostgreSQLを使用したミートアップリポジトリ。
// 発表（talks）の参照も同じ構造体で提供する。
type PostgresMeetupRepo struct {
	db *sql.DB
}

// NewPostgresMeetupRepo はPostgresMeetupRepoを生成する。
func NewPostgresMeetupRepo(db *sql.DB) *PostgresMeetupRepo {
	return &PostgresMeetupRepo{db: db}
}

func scanMeetup(row interface{ Scan(...any) error }) (*model.Meetup, error) {
	m := &model.Meetup{}
	var eventType string
	if err := row.Scan(&m.ID, &m.Number, &m.Date, &m.Description, &m.Location, &eventType, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	m.EventType = model.EventType(eventType)
	return m, nil
}

func scanTalk(row interface{ Scan(...any) error }) (*model.Talk, error) {
	t := &model.Talk{}
	err := row.Scan(&t.ID, &t.MeetupID, &t.Title, &t.SpeakerName, &t.SpeakerHomepage, &t.SlidesURL,
		&t.SourceCodeURL, &t.VideoProvider, &t.VideoID, &t.VideoThumb, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// FindByID は指定IDのミートアップを取得する。見つからない場合はnilを返す。
func (r *PostgresMeetupRepo) FindByID(ctx context.Context, id int64) (*model.Meetup, error) {
	m, err := scanMeetup(r.db.QueryRowContext(ctx,
		`SELECT `+meetupColumns+` FROM meetups WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find meetup: %w", err)
	}
	return m, nil
}

// FindNextUpcoming はfrom以降で最も近いミートアップを返す。
func (r *PostgresMeetupRepo) FindNextUpcoming(ctx context.Context, eventType model.EventType, from time.Time) (*model.Meetup, error) {
	m, err := scanMeetup(r.db.QueryRowContext(ctx,
		`SELECT `+meetupColumns+` FROM meetups
		 WHERE date >= $1::date AND ($2 = '' OR event_type = $2)
		 ORDER BY date ASC, id ASC
		 LIMIT 1`,
		from, string(eventType),
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find upcoming meetup: %w", err)
	}
	return m, nil
}

// ListOrdered はordered順でミートアップを返す。
func (r *PostgresMeetupRepo) ListOrdered(ctx context.Context, eventType model.EventType, offset, limit int) ([]*model.Meetup, error) {
	var limitArg any
	if limit > 0 {
		limitArg = limit
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+meetupColumns+` FROM meetups
		 WHERE ($1 = '' OR event_type = $1)
		 `+orderedClause+`
		 OFFSET $2 LIMIT $3`,
		string(eventType), offset, limitArg,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list meetups: %w", err)
	}
	defer rows.Close()

	var meetups []*model.Meetup
	for rows.Next() {
		m, err := scanMeetup(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan meetup: %w", err)
		}
		meetups = append(meetups, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate meetups: %w", err)
	}
	return meetups, nil
}

// ListFormalWithTalks は通常回をordered順で発表付きで返す。
func (r *PostgresMeetupRepo) ListFormalWithTalks(ctx context.Context) ([]model.MeetupWithTalks, error) {
	meetups, err := r.ListOrdered(ctx, model.EventTypeFormal, 0, 0)
	if err != nil {
		return nil, err
	}
	if len(meetups) == 0 {
		return nil, nil
	}

	ids := make([]int64, len(meetups))
	for i, m := range meetups {
		ids[i] = m.ID
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+talkColumns+` FROM talks WHERE meetup_id = ANY($1) ORDER BY id ASC`,
		pq.Array(ids),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list talks: %w", err)
	}
	defer rows.Close()

	talksByMeetup := make(map[int64][]*model.Talk)
	for rows.Next() {
		t, err := scanTalk(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan talk: %w", err)
		}
		talksByMeetup[t.MeetupID] = append(talksByMeetup[t.MeetupID], t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate talks: %w", err)
	}

	result := make([]model.MeetupWithTalks, len(meetups))
	for i, m := range meetups {
		result[i] = model.MeetupWithTalks{Meetup: *m, Talks: talksByMeetup[m.ID]}
	}
	return result, nil
}

// Count はミートアップの総数を返す。
func (r *PostgresMeetupRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM meetups`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count meetups: %w", err)
	}
	return n, nil
}

// PostgresTalkRepo はPostgreSQLを使用した発表リポジトリ。
type PostgresTalkRepo struct {
	db *sql.DB
}

// NewPostgresTalkRepo はPostgresTalkRepoを生成する。
func NewPostgresTalkRepo(db *sql.DB) *PostgresTalkRepo {
	return &PostgresTalkRepo{db: db}
}

// List は発表を新しい順に返す。
func (r *PostgresTalkRepo) List(ctx context.Context, limit int) ([]*model.Talk, error) {
	var limitArg any
	if limit > 0 {
		limitArg = limit
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+talkColumns+` FROM talks ORDER BY created_at DESC, id DESC LIMIT $1`,
		limitArg,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list talks: %w", err)
	}
	defer rows.Close()

	var talks []*model.Talk
	for rows.Next() {
		t, err := scanTalk(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan talk: %w", err)
		}
		talks = append(talks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate talks: %w", err)
	}
	return talks, nil
}

// Count は発表の総数を返す。
func (r *PostgresTalkRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM talks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count talks: %w", err)
	}
	return n, nil
}

// compile-time interface check
var (
	_ MeetupRepository = (*PostgresMeetupRepo)(nil)
	_ TalkRepository   = (*PostgresTalkRepo)(nil)
)
