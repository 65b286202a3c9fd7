// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 認証試行の結果ラベル。
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// トークン検証の結果ラベル。
const (
	VerifyValid   = "valid"
	VerifyMissing = "missing"
	VerifyInvalid = "invalid"
	VerifyRevoked = "revoked"
)

// MetricsCollector はメトリクス収集のインターフェース。
// 認証サービスやミドルウェアから利用する。
type MetricsCollector interface {
	RecordAuthAttempt(result string)
	RecordLoginThrottled()
	RecordRegistration(result string)
	RecordTokenVerification(outcome string)
	RecordLogout()
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	authAttempts   *prometheus.CounterVec
	loginThrottled prometheus.Counter
	registrations  *prometheus.CounterVec
	verifications  *prometheus.CounterVec
	logouts        prometheus.Counter
	httpStatus     *prometheus.CounterVec
	requestLatency prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		authAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jwtpizza_auth_attempts_total",
			Help: "ログイン試行の結果別の合計数",
		}, []string{"result"}),
		loginThrottled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jwtpizza_login_throttled_total",
			Help: "試行回数超過で拒否されたログインの合計数",
		}),
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jwtpizza_registrations_total",
			Help: "ユーザー登録の結果別の合計数",
		}, []string{"result"}),
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jwtpizza_token_verifications_total",
			Help: "トークン検証の結果別の合計数",
		}, []string{"outcome"}),
		logouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jwtpizza_logouts_total",
			Help: "ログアウトの合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jwtpizza_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "jwtpizza_request_latency_seconds",
			Help:    "HTTPリクエスト処理のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.authAttempts,
		c.loginThrottled,
		c.registrations,
		c.verifications,
		c.logouts,
		c.httpStatus,
		c.requestLatency,
	)

	return c
}

// RecordAuthAttempt はログイン試行の結果を記録する。
func (c *Collector) RecordAuthAttempt(result string) {
	c.authAttempts.WithLabelValues(result).Inc()
}

// RecordLoginThrottled は試行回数超過による拒否を記録する。
func (c *Collector) RecordLoginThrottled() {
	c.loginThrottled.Inc()
}

// RecordRegistration はユーザー登録の結果を記録する。
func (c *Collector) RecordRegistration(result string) {
	c.registrations.WithLabelValues(result).Inc()
}

// RecordTokenVerification はトークン検証の結果を記録する。
func (c *Collector) RecordTokenVerification(outcome string) {
	c.verifications.WithLabelValues(outcome).Inc()
}

// RecordLogout はログアウトを記録する。
func (c *Collector) RecordLogout() {
	c.logouts.Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエスト処理のレイテンシを記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// NopCollector は何も記録しないMetricsCollector。
type NopCollector struct{}

func (NopCollector) RecordAuthAttempt(string)           {}
func (NopCollector) RecordLoginThrottled()              {}
func (NopCollector) RecordRegistration(string)          {}
func (NopCollector) RecordTokenVerification(string)     {}
func (NopCollector) RecordLogout()                      {}
func (NopCollector) RecordHTTPStatus(int)               {}
func (NopCollector) RecordRequestLatency(time.Duration) {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = NopCollector{}
)
