// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// 認証・認可サービスやミドルウェアから利用する。
type MetricsCollector interface {
	RecordLogin(provider, result string)
	RecordAdminCheck(strategy, result string)
	RecordGitHubAPILatency(endpoint string, duration time.Duration)
	RecordHTTPStatus(statusCode int)
	RecordRSVP(status string)
	RecordBlockedRequest(reason string)
	RecordSessionsPurged(count int64)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	logins          *prometheus.CounterVec
	adminChecks     *prometheus.CounterVec
	githubLatency   *prometheus.HistogramVec
	httpStatus      *prometheus.CounterVec
	rsvps           *prometheus.CounterVec
	blockedRequests *prometheus.CounterVec
	sessionsPurged  prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trug_logins_total",
			Help: "ログイン試行の合計数（プロバイダ・結果別）",
		}, []string{"provider", "result"}),
		adminChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trug_admin_checks_total",
			Help: "管理者判定の合計数（判定方法・結果別）",
		}, []string{"strategy", "result"}),
		githubLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "trug_github_api_latency_seconds",
			Help:    "GitHub API呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trug_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		rsvps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trug_rsvps_total",
			Help: "参加表明の合計数（状態別）",
		}, []string{"status"}),
		blockedRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trug_blocked_requests_total",
			Help: "ブロック・スロットルされたリクエスト数（理由別）",
		}, []string{"reason"}),
		sessionsPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trug_sessions_purged_total",
			Help: "保持期間を過ぎて削除されたセッションの合計数",
		}),
	}

	reg.MustRegister(
		c.logins,
		c.adminChecks,
		c.githubLatency,
		c.httpStatus,
		c.rsvps,
		c.blockedRequests,
		c.sessionsPurged,
	)

	return c
}

// RecordLogin はログイン試行の結果を記録する。
func (c *Collector) RecordLogin(provider, result string) {
	c.logins.WithLabelValues(provider, result).Inc()
}

// RecordAdminCheck は管理者判定の結果を記録する。
// resultは granted, denied, error のいずれか。
func (c *Collector) RecordAdminCheck(strategy, result string) {
	c.adminChecks.WithLabelValues(strategy, result).Inc()
}

// RecordGitHubAPILatency はGitHub API呼び出しのレイテンシを記録する。
func (c *Collector) RecordGitHubAPILatency(endpoint string, duration time.Duration) {
	c.githubLatency.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRSVP は参加表明を記録する。
func (c *Collector) RecordRSVP(status string) {
	c.rsvps.WithLabelValues(status).Inc()
}

// RecordBlockedRequest はブロックされたリクエストを記録する。
func (c *Collector) RecordBlockedRequest(reason string) {
	c.blockedRequests.WithLabelValues(reason).Inc()
}

// RecordSessionsPurged は削除されたセッション数を記録する。
func (c *Collector) RecordSessionsPurged(count int64) {
	c.sessionsPurged.Add(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
