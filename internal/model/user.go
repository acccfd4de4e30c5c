// Package model はドメインモデルを定義する。
package model

import (
	"strings"
	"time"
)

// User はサイト利用者（identity）を表す。
// ローカル認証用のパスワードダイジェストと、GitHub連携時の外部IDを併せ持つ。
type User struct {
	ID             string
	GitHubID       string // 未連携の場合は空文字
	GitHubUsername string // 未連携の場合は空文字
	Email          string // 正規化済み（小文字・前後空白除去）
	PasswordDigest string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// HasGitHub はGitHubアカウントと連携済みかどうかを返す。
func (u *User) HasGitHub() bool {
	return u != nil && u.GitHubID != "" && u.GitHubUsername != ""
}

// Session はユーザーのログインセッションを表す。
// IDはCookieに格納される不透明な値として使用する。
type Session struct {
	ID        string
	UserID    string
	UserAgent string
	IPAddress string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ExternalProfile はOAuthプロバイダから取得したプロフィール情報を表す。
type ExternalProfile struct {
	ID    string // プロバイダ側の数値IDを文字列化したもの
	Login string
	Email string // 非公開の場合は空文字
}

// ClientMeta はセッション作成時に記録するクライアント情報。
type ClientMeta struct {
	UserAgent string
	IPAddress string
}

// NormalizeEmail はメールアドレスを保存・比較用に正規化する。
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
