package model

import (
	"errors"
	"fmt"
	"testing"
)

func TestNormalizeEmail(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  Foo@Example.COM ", "foo@example.com"},
		{"bar@example.com", "bar@example.com"},
		{"\tBAZ@x.pl\n", "baz@x.pl"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeEmail(tt.in); got != tt.want {
			t.Errorf("NormalizeEmail(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestUser_HasGitHub(t *testing.T) {
	var nilUser *User
	if nilUser.HasGitHub() {
		t.Error("nil user should not be linked")
	}
	if (&User{Email: "a@b.c"}).HasGitHub() {
		t.Error("local user should not be linked")
	}
	if (&User{GitHubID: "1"}).HasGitHub() {
		t.Error("user without username should not be linked")
	}
	if !(&User{GitHubID: "1", GitHubUsername: "octo"}).HasGitHub() {
		t.Error("expected linked user")
	}
}

func TestParseAttendanceStatus(t *testing.T) {
	tests := []struct {
		raw     string
		want    AttendanceStatus
		wantErr bool
	}{
		{"", AttendanceYes, false},
		{"0", AttendanceMaybe, false},
		{"1", AttendanceYes, false},
		{"2", AttendanceNo, false},
		{"no", AttendanceNo, false},
		{"MAYBE", AttendanceMaybe, false},
		{"3", 0, true},
		{"-1", 0, true},
		{"perhaps", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseAttendanceStatus(tt.raw)
			if tt.wantErr {
				if !IsValidation(err) {
					t.Fatalf("expected ValidationError, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAttendanceStatus_NextCycles(t *testing.T) {
	s := AttendanceYes
	seen := []AttendanceStatus{}
	for i := 0; i < 3; i++ {
		s = s.Next()
		seen = append(seen, s)
	}
	want := []AttendanceStatus{AttendanceMaybe, AttendanceNo, AttendanceYes}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("step %d: got %v, want %v", i, seen[i], want[i])
		}
	}
}

func TestAttendanceStatus_Label(t *testing.T) {
	if AttendanceYes.Label() != "Tak, będę!" {
		t.Errorf("unexpected yes label %q", AttendanceYes.Label())
	}
	if AttendanceStatus(9).Label() != "Nieznany" {
		t.Errorf("unexpected fallback label %q", AttendanceStatus(9).Label())
	}
}

func TestOAuthExchangeError_Message(t *testing.T) {
	cause := errors.New("boom")
	err := &OAuthExchangeError{Code: "bad_verification_code", Description: "The code passed is incorrect or expired.", Err: cause}

	wrapped := fmt.Errorf("callback: %w", err)
	var oe *OAuthExchangeError
	if !errors.As(wrapped, &oe) {
		t.Fatal("expected errors.As to find OAuthExchangeError")
	}
	if !errors.Is(wrapped, cause) {
		t.Error("expected cause to be unwrappable")
	}
	want := "oauth exchange failed: bad_verification_code (The code passed is incorrect or expired.): boom"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestNotFoundError(t *testing.T) {
	err := fmt.Errorf("lookup: %w", NewNotFoundError("meetup", "42"))
	if !IsNotFound(err) {
		t.Fatal("expected IsNotFound")
	}
	if IsValidation(err) {
		t.Error("not a validation error")
	}
	if NewNotFoundError("meetup", "").Error() != "meetup not found" {
		t.Error("unexpected message without id")
	}
}

func TestEventType_Valid(t *testing.T) {
	if !EventTypeFormal.Valid() || !EventTypeBar.Valid() {
		t.Error("expected defined event types to be valid")
	}
	if EventType("party").Valid() {
		t.Error("unexpected valid event type")
	}
}
