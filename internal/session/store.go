package session

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/sessions"
)

// StoreName はWebセッションCookie名。
const StoreName = "_trug_session"

const (
	keyReturnTo        = "return_to"
	keyPendingMeetupID = "attendance_meetup_id"
	keyPendingStatus   = "attendance_status"
	keyOAuthState      = "oauth_state"
	keySkipAutoLogin   = "skip_auto_login"
	flashNotice        = "notice"
	flashAlert         = "alert"
)

// Flash は次のリクエストで一度だけ表示するメッセージ。
type Flash struct {
	Notice string `json:"notice,omitempty"`
	Alert  string `json:"alert,omitempty"`
}

// PendingAttendance は未ログイン時に送信された参加表明。
// OAuthログイン完了後に再開する。
type PendingAttendance struct {
	MeetupID int64
	Status   string
}

// Store はgorilla/sessionsのCookieStoreを用いたWebセッション。
// ログイン前後をまたいで保持する小さな値（戻り先URL、OAuth state、フラッシュ等）を扱う。
type Store struct {
	store *sessions.CookieStore
}

// NewStore はStoreを生成する。
func NewStore(secret string, opts CookieOptions) *Store {
	cs := sessions.NewCookieStore(
		deriveKey(secret, "web-session-hash"),
		deriveKey(secret, "web-session-block")[:32],
	)
	cs.Options = &sessions.Options{
		Path:     "/",
		Domain:   opts.Domain,
		MaxAge:   0,
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	return &Store{store: cs}
}

// get はWebセッションを取得する。復号に失敗した場合は空のセッションを返す。
func (s *Store) get(r *http.Request) *sessions.Session {
	sess, err := s.store.Get(r, StoreName)
	if err != nil {
		slog.Debug("discarding unreadable web session", slog.String("error", err.Error()))
	}
	return sess
}

func (s *Store) save(w http.ResponseWriter, r *http.Request, sess *sessions.Session) error {
	return sess.Save(r, w)
}

// AddNotice は通知メッセージを追加する。
func (s *Store) AddNotice(w http.ResponseWriter, r *http.Request, msg string) error {
	sess := s.get(r)
	sess.AddFlash(msg, flashNotice)
	return s.save(w, r, sess)
}

// AddAlert は警告メッセージを追加する。
func (s *Store) AddAlert(w http.ResponseWriter, r *http.Request, msg string) error {
	sess := s.get(r)
	sess.AddFlash(msg, flashAlert)
	return s.save(w, r, sess)
}

// PopFlash はフラッシュメッセージを取り出して削除する。
func (s *Store) PopFlash(w http.ResponseWriter, r *http.Request) (Flash, error) {
	sess := s.get(r)
	var f Flash
	notices := sess.Flashes(flashNotice)
	alerts := sess.Flashes(flashAlert)
	if len(notices) == 0 && len(alerts) == 0 {
		return f, nil
	}
	if len(notices) > 0 {
		if msg, ok := notices[len(notices)-1].(string); ok {
			f.Notice = msg
		}
	}
	if len(alerts) > 0 {
		if msg, ok := alerts[len(alerts)-1].(string); ok {
			f.Alert = msg
		}
	}
	return f, s.save(w, r, sess)
}

// SetReturnTo はログイン後の戻り先URLを保存する。
func (s *Store) SetReturnTo(w http.ResponseWriter, r *http.Request, url string) error {
	sess := s.get(r)
	sess.Values[keyReturnTo] = url
	return s.save(w, r, sess)
}

// PopReturnTo は戻り先URLを取り出して削除する。未設定の場合は空文字を返す。
func (s *Store) PopReturnTo(w http.ResponseWriter, r *http.Request) (string, error) {
	sess := s.get(r)
	url, ok := sess.Values[keyReturnTo].(string)
	if !ok {
		return "", nil
	}
	delete(sess.Values, keyReturnTo)
	return url, s.save(w, r, sess)
}

// SetPendingAttendance は未ログイン時の参加表明を保存する。
func (s *Store) SetPendingAttendance(w http.ResponseWriter, r *http.Request, p PendingAttendance) error {
	sess := s.get(r)
	sess.Values[keyPendingMeetupID] = p.MeetupID
	sess.Values[keyPendingStatus] = p.Status
	return s.save(w, r, sess)
}

// PopPendingAttendance は保存済みの参加表明を取り出して削除する。
func (s *Store) PopPendingAttendance(w http.ResponseWriter, r *http.Request) (PendingAttendance, bool, error) {
	sess := s.get(r)
	meetupID, ok := sess.Values[keyPendingMeetupID].(int64)
	if !ok {
		return PendingAttendance{}, false, nil
	}
	status, _ := sess.Values[keyPendingStatus].(string)
	delete(sess.Values, keyPendingMeetupID)
	delete(sess.Values, keyPendingStatus)
	return PendingAttendance{MeetupID: meetupID, Status: status}, true, s.save(w, r, sess)
}

// SetOAuthState はOAuthのstateパラメータを保存する。
func (s *Store) SetOAuthState(w http.ResponseWriter, r *http.Request, state string) error {
	sess := s.get(r)
	sess.Values[keyOAuthState] = state
	return s.save(w, r, sess)
}

// PopOAuthState は保存済みのstateを取り出して削除する。
func (s *Store) PopOAuthState(w http.ResponseWriter, r *http.Request) (string, error) {
	sess := s.get(r)
	state, ok := sess.Values[keyOAuthState].(string)
	if !ok {
		return "", nil
	}
	delete(sess.Values, keyOAuthState)
	return state, s.save(w, r, sess)
}

// SetSkipAutoLogin は明示的なログアウト後に開発用自動ログインを抑止する。
func (s *Store) SetSkipAutoLogin(w http.ResponseWriter, r *http.Request) error {
	sess := s.get(r)
	sess.Values[keySkipAutoLogin] = true
	return s.save(w, r, sess)
}

// ClearSkipAutoLogin は自動ログイン抑止フラグを解除する。
func (s *Store) ClearSkipAutoLogin(w http.ResponseWriter, r *http.Request) error {
	sess := s.get(r)
	if _, ok := sess.Values[keySkipAutoLogin]; !ok {
		return nil
	}
	delete(sess.Values, keySkipAutoLogin)
	return s.save(w, r, sess)
}

// SkipAutoLogin は自動ログイン抑止フラグが立っているかを返す。
func (s *Store) SkipAutoLogin(r *http.Request) bool {
	skip, _ := s.get(r).Values[keySkipAutoLogin].(bool)
	return skip
}
