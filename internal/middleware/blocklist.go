package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/trug/internal/metrics"
	"github.com/hitoshi/trug/internal/model"
)

// DefaultBlockedPaths は脆弱性スキャナーがよく探索するパス片。
var DefaultBlockedPaths = []string{
	".php", "wp-login.php", "wp-admin", "wp-content", "wp-includes", "xmlrpc.php",
	"phpmyadmin", "pma", "myadmin", "mysql", "administrator", "admin/login", "admin/admin",
	"manager", "cms", "wordpress", "drupal", "joomla",
	".env", ".git/config", ".git/head", "config.json", "config.xml",
	"eval-stdin.php",
}

// DefaultBlockedUserAgents はスキャナーや汎用HTTPクライアントのUser-Agent片。
var DefaultBlockedUserAgents = []string{
	"masscan", "zgrab", "nmap", "nikto", "sqlmap", "dirbuster", "gobuster", "burp",
	"wfuzz", "dirb", "crawlergo", "x-crawler", "scrapy", "python-requests", "curl",
	"wget", "libwww-perl", "python-urllib", "java/", "httpclient", "winhttp", "httpx",
	"axios", "postman", "insomnia",
}

// BlocklistConfig はブロックリストの設定。照合は大文字小文字を区別しない部分一致。
type BlocklistConfig struct {
	Paths      []string
	UserAgents []string
}

// DefaultBlocklistConfig はデフォルトのブロックリストを返す。
func DefaultBlocklistConfig() BlocklistConfig {
	return BlocklistConfig{
		Paths:      DefaultBlockedPaths,
		UserAgents: DefaultBlockedUserAgents,
	}
}

// NewBlocklistMiddleware はスキャナーのパスやボットのUser-Agentを403で拒否するミドルウェアを返す。
// ループバックアドレスからのリクエストは拒否しない。
func NewBlocklistMiddleware(config BlocklistConfig, mc metrics.MetricsCollector) func(next http.Handler) http.Handler {
	paths := lowerAll(config.Paths)
	agents := lowerAll(config.UserAgents)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ClientIP(r)
			if isLoopback(ip) {
				next.ServeHTTP(w, r)
				return
			}

			reason := ""
			if containsAny(strings.ToLower(r.URL.Path), paths) {
				reason = "path"
			} else if containsAny(strings.ToLower(r.UserAgent()), agents) {
				reason = "user_agent"
			}

			if reason == "" {
				next.ServeHTTP(w, r)
				return
			}

			slog.Info("request blocked",
				slog.String("reason", reason),
				slog.String("path", r.URL.Path),
				slog.String("ip", ip),
			)
			if mc != nil {
				mc.RecordBlockedRequest("blocklist_" + reason)
			}
			WriteForbidden(w, model.ErrCodeRequestBlocked, "Forbidden")
		})
	}
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
