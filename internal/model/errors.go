package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// JSONエンドポイントで返すカテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, meetup, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeAuthRequired   = "AUTH_REQUIRED"
	ErrCodeForbidden      = "FORBIDDEN"
	ErrCodeNotFound       = "NOT_FOUND"
	ErrCodeValidation     = "VALIDATION_ERROR"
	ErrCodeUserNotFound   = "USER_NOT_FOUND"
	ErrCodeInternal       = "INTERNAL_ERROR"
	ErrCodeRateLimited    = "RATE_LIMIT_EXCEEDED"
	ErrCodeCSRFInvalid    = "CSRF_TOKEN_INVALID"
	ErrCodeRequestBlocked = "REQUEST_BLOCKED"
)

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "Nie znaleziono użytkownika.",
		Category: "auth",
		Action:   "Zaloguj się ponownie.",
	}
}

// OAuthExchangeError は認可コードの交換またはプロフィール取得に失敗したことを表す。
// プロバイダが返したエラーコードと説明を保持する。リトライは行わない。
type OAuthExchangeError struct {
	Code        string // プロバイダのerrorフィールド（例: bad_verification_code）
	Description string // プロバイダのerror_descriptionフィールド
	Err         error
}

// Error はerrorインターフェースを実装する。
func (e *OAuthExchangeError) Error() string {
	msg := "oauth exchange failed"
	if e.Code != "" {
		msg += ": " + e.Code
	}
	if e.Description != "" {
		msg += " (" + e.Description + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap は原因エラーを返す。
func (e *OAuthExchangeError) Unwrap() error {
	return e.Err
}

// ValidationError は入力値やレコードの検証エラーを表す。
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError はValidationErrorを生成する。
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// Error はerrorインターフェースを実装する。
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// NotFoundError は参照対象のレコードが存在しないことを表す。
type NotFoundError struct {
	Resource string
	ID       string
}

// NewNotFoundError はNotFoundErrorを生成する。
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// Error はerrorインターフェースを実装する。
func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return e.Resource + " not found"
	}
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// IsValidation はerrがValidationErrorを含むかどうかを返す。
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsNotFound はerrがNotFoundErrorを含むかどうかを返す。
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
