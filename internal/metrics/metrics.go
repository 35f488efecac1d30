// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 結果ラベルの値
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// MetricsCollector はメトリクス収集のインターフェース。
// サービス層、ワーカー、ミドルウェアから利用する。
type MetricsCollector interface {
	RecordArticlePublished()
	RecordArticleDeleted()
	RecordSitemapRegeneration(success bool, urls int, duration time.Duration)
	RecordMediaUpload(result string)
	RecordLoginAttempt(result string)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	articlesPublished prometheus.Counter
	articlesDeleted   prometheus.Counter
	sitemapRegens     *prometheus.CounterVec
	sitemapURLs       prometheus.Gauge
	sitemapLatency    prometheus.Histogram
	mediaUploads      *prometheus.CounterVec
	loginAttempts     *prometheus.CounterVec
	httpStatus        *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		articlesPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blogman_articles_published_total",
			Help: "公開状態で保存された記事の合計数",
		}),
		articlesDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blogman_articles_deleted_total",
			Help: "削除された記事の合計数",
		}),
		sitemapRegens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blogman_sitemap_regenerations_total",
			Help: "サイトマップ再生成の結果別の合計数",
		}, []string{"result"}),
		sitemapURLs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "blogman_sitemap_urls",
			Help: "直近に生成したサイトマップのURL数",
		}),
		sitemapLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "blogman_sitemap_regeneration_seconds",
			Help:    "サイトマップ再生成にかかった時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		mediaUploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blogman_media_uploads_total",
			Help: "メディアアップロードの結果別の合計数",
		}, []string{"result"}),
		loginAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blogman_login_attempts_total",
			Help: "ログイン試行の結果別の合計数",
		}, []string{"result"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blogman_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.articlesPublished,
		c.articlesDeleted,
		c.sitemapRegens,
		c.sitemapURLs,
		c.sitemapLatency,
		c.mediaUploads,
		c.loginAttempts,
		c.httpStatus,
	)

	return c
}

// RecordArticlePublished は記事の公開を記録する。
func (c *Collector) RecordArticlePublished() {
	c.articlesPublished.Inc()
}

// RecordArticleDeleted は記事の削除を記録する。
func (c *Collector) RecordArticleDeleted() {
	c.articlesDeleted.Inc()
}

// RecordSitemapRegeneration はサイトマップ再生成の結果を記録する。
// 成功時のみURL数のゲージを更新する。
func (c *Collector) RecordSitemapRegeneration(success bool, urls int, duration time.Duration) {
	c.sitemapLatency.Observe(duration.Seconds())
	if !success {
		c.sitemapRegens.WithLabelValues(ResultFailure).Inc()
		return
	}
	c.sitemapRegens.WithLabelValues(ResultSuccess).Inc()
	c.sitemapURLs.Set(float64(urls))
}

// RecordMediaUpload はメディアアップロードの結果を記録する。
func (c *Collector) RecordMediaUpload(result string) {
	c.mediaUploads.WithLabelValues(result).Inc()
}

// RecordLoginAttempt はログイン試行の結果を記録する。
func (c *Collector) RecordLoginAttempt(result string) {
	c.loginAttempts.WithLabelValues(result).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントのみを提供するHTTPハンドラーを返す。
// ワーカープロセスで利用する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}

var _ MetricsCollector = (*Collector)(nil)
