package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizerService は利用者が入力したテキストからHTMLを取り除くインターフェース。
// ミートアップの説明やトークのタイトルをJSONで返す前に使用する。
type TextSanitizerService interface {
	Sanitize(raw string) string
}

var _ TextSanitizerService = (*TextSanitizer)(nil)

// TextSanitizer はbluemondayのStrictPolicyで全てのタグを除去する。
// bluemondayのポリシーはスレッドセーフ。
type TextSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer は新しいTextSanitizerを生成する。
func NewTextSanitizer() *TextSanitizer {
	return &TextSanitizer{policy: bluemonday.StrictPolicy()}
}

// Sanitize はタグを除去し、エスケープされた実体参照を元の文字に戻して返す。
// 戻り値はJSONに埋め込むプレーンテキストで、HTMLとして出力してはならない。
func (s *TextSanitizer) Sanitize(raw string) string {
	if raw == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(raw)))
}
