// Package session はログインセッションCookieの署名と、
// フラッシュメッセージ等を保持するWebセッションを提供する。
package session

import (
	"crypto/hmac"
	"crypto/sha256"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
)

// CookieName はログインセッションIDを保持するCookie名。
const CookieName = "session_id"

// deriveKey はアプリケーションシークレットから用途別の鍵を導出する。
func deriveKey(secret, purpose string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(purpose))
	return mac.Sum(nil)
}

// CookieCodec はセッションIDを署名付きCookieとして読み書きする。
// 署名が不正なCookieは存在しないものとして扱う。
type CookieCodec struct {
	sc     *securecookie.SecureCookie
	secure bool
	domain string
	maxAge int
}

// CookieOptions はCookieCodecの設定。
type CookieOptions struct {
	Secure bool   // HTTPS環境ではtrue
	Domain string // 空文字の場合はホスト限定
	MaxAge int    // 秒
}

// NewCookieCodec はCookieCodecを生成する。
func NewCookieCodec(secret string, opts CookieOptions) *CookieCodec {
	sc := securecookie.New(deriveKey(secret, "session_id-hash"), nil)
	sc.SetSerializer(securecookie.JSONEncoder{})
	sc.MaxAge(opts.MaxAge)
	return &CookieCodec{
		sc:     sc,
		secure: opts.Secure,
		domain: opts.Domain,
		maxAge: opts.MaxAge,
	}
}

// Write は署名済みのセッションIDをCookieに設定する。
func (c *CookieCodec) Write(w http.ResponseWriter, sessionID string) error {
	encoded, err := c.sc.Encode(CookieName, sessionID)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    encoded,
		Path:     "/",
		Domain:   c.domain,
		MaxAge:   c.maxAge,
		Expires:  time.Now().Add(time.Duration(c.maxAge) * time.Second),
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Read はリクエストのCookieから署名を検証してセッションIDを取り出す。
// Cookieが無い、または署名が不正な場合はfalseを返す。
func (c *CookieCodec) Read(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	var sessionID string
	if err := c.sc.Decode(CookieName, cookie.Value, &sessionID); err != nil {
		return "", false
	}
	if sessionID == "" {
		return "", false
	}
	return sessionID, true
}

// Clear はセッションCookieを削除する。
func (c *CookieCodec) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		Domain:   c.domain,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
