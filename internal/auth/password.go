package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength はローカル認証パスワードの最小長。
const MinPasswordLength = 8

// HashPassword はパスワードをbcryptでハッシュ化する。
func HashPassword(password string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(digest), nil
}

// CheckPassword はパスワードがダイジェストと一致するかを返す。
func CheckPassword(digest, password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(digest), []byte(password))
	return err == nil
}

// randomHex は暗号的に安全なランダム値をn バイト生成し16進文字列で返す。
func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	return randomHex(32)
}

// GenerateState はOAuthのstateパラメータ用のランダム値を生成する。
func GenerateState() (string, error) {
	return randomHex(16)
}

// errPasswordTooLong はbcryptの入力上限（72バイト）を超えた場合のエラー。
var errPasswordTooLong = errors.New("password exceeds 72 bytes")

// validatePassword はローカル登録時のパスワード要件を検証する。
func validatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	}
	if len(password) > 72 {
		return errPasswordTooLong
	}
	return nil
}
