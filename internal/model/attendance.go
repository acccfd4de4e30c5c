package model

import (
	"strconv"
	"strings"
	"time"
)

// AttendanceStatus は参加表明の状態を表す。DB上は整数で保存する。
type AttendanceStatus int

const (
	AttendanceMaybe AttendanceStatus = 0
	AttendanceYes   AttendanceStatus = 1
	AttendanceNo    AttendanceStatus = 2
)

// DefaultAttendanceStatus はstatus未指定時に採用する状態。
const DefaultAttendanceStatus = AttendanceYes

// Valid は定義済みの状態かどうかを返す。
func (s AttendanceStatus) Valid() bool {
	return s == AttendanceMaybe || s == AttendanceYes || s == AttendanceNo
}

// String は状態名（maybe, yes, no）を返す。
func (s AttendanceStatus) String() string {
	switch s {
	case AttendanceMaybe:
		return "maybe"
	case AttendanceYes:
		return "yes"
	case AttendanceNo:
		return "no"
	default:
		return "unknown"
	}
}

// Label は画面表示用のラベルを返す。
func (s AttendanceStatus) Label() string {
	switch s {
	case AttendanceYes:
		return "Tak, będę!"
	case AttendanceMaybe:
		return "Może"
	case AttendanceNo:
		return "Nie będę"
	default:
		return "Nieznany"
	}
}

// Next はトグル操作時の次の状態を返す（yes → maybe → no → yes）。
func (s AttendanceStatus) Next() AttendanceStatus {
	switch s {
	case AttendanceYes:
		return AttendanceMaybe
	case AttendanceMaybe:
		return AttendanceNo
	default:
		return AttendanceYes
	}
}

// ParseAttendanceStatus はフォーム値を状態に変換する。
// 空文字はDefaultAttendanceStatusとして扱う。数値・状態名のどちらも受け付ける。
func ParseAttendanceStatus(raw string) (AttendanceStatus, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultAttendanceStatus, nil
	}
	if n, err := strconv.Atoi(raw); err == nil {
		s := AttendanceStatus(n)
		if s.Valid() {
			return s, nil
		}
		return 0, NewValidationError("status", "nieprawidłowy status: "+raw)
	}
	for _, s := range []AttendanceStatus{AttendanceMaybe, AttendanceYes, AttendanceNo} {
		if strings.EqualFold(raw, s.String()) {
			return s, nil
		}
	}
	return 0, NewValidationError("status", "nieprawidłowy status: "+raw)
}

// Attendance はミートアップへの参加表明を表す。
// (MeetupID, GitHubUsername) の組で一意。
type Attendance struct {
	ID             int64
	MeetupID       int64
	UserID         string // アカウント削除後は空文字
	GitHubUsername string
	Status         AttendanceStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
