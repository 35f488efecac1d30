package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// findMetric はレジストリから指定名のメトリクスファミリーを取得する。
func findMetric(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	t.Fatalf("%s metric not found", name)
	return nil
}

// labelValue はラベル値が一致するメトリクスのカウンタ値を返す。
func labelValue(mf *dto.MetricFamily, label, value string) float64 {
	for _, m := range mf.GetMetric() {
		for _, lp := range m.GetLabel() {
			if lp.GetName() == label && lp.GetValue() == value {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	if c := NewCollector(reg); c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestRecordArticleCounters は記事の公開・削除カウンタが増加することを検証する。
func TestRecordArticleCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordArticlePublished()
	c.RecordArticlePublished()
	c.RecordArticleDeleted()

	if got := findMetric(t, reg, "blogman_articles_published_total").GetMetric()[0].GetCounter().GetValue(); got != 2 {
		t.Errorf("articles_published_total = %v, want 2", got)
	}
	if got := findMetric(t, reg, "blogman_articles_deleted_total").GetMetric()[0].GetCounter().GetValue(); got != 1 {
		t.Errorf("articles_deleted_total = %v, want 1", got)
	}
}

// TestRecordSitemapRegeneration は成功時にURL数ゲージが更新され、失敗時は据え置かれることを検証する。
func TestRecordSitemapRegeneration(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSitemapRegeneration(true, 4, 10*time.Millisecond)
	c.RecordSitemapRegeneration(false, 0, time.Millisecond)

	regens := findMetric(t, reg, "blogman_sitemap_regenerations_total")
	if got := labelValue(regens, "result", ResultSuccess); got != 1 {
		t.Errorf("success = %v, want 1", got)
	}
	if got := labelValue(regens, "result", ResultFailure); got != 1 {
		t.Errorf("failure = %v, want 1", got)
	}

	if got := findMetric(t, reg, "blogman_sitemap_urls").GetMetric()[0].GetGauge().GetValue(); got != 4 {
		t.Errorf("sitemap_urls = %v, want 4", got)
	}

	hist := findMetric(t, reg, "blogman_sitemap_regeneration_seconds").GetMetric()[0].GetHistogram()
	if hist.GetSampleCount() != 2 {
		t.Errorf("sample count = %d, want 2", hist.GetSampleCount())
	}
}

// TestRecordResultCounters はラベル付きカウンタが結果別に増加することを検証する。
func TestRecordResultCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordMediaUpload(ResultSuccess)
	c.RecordLoginAttempt(ResultFailure)
	c.RecordLoginAttempt(ResultFailure)
	c.RecordLoginAttempt("rate_limited")

	if got := labelValue(findMetric(t, reg, "blogman_media_uploads_total"), "result", ResultSuccess); got != 1 {
		t.Errorf("media_uploads success = %v, want 1", got)
	}
	logins := findMetric(t, reg, "blogman_login_attempts_total")
	if got := labelValue(logins, "result", ResultFailure); got != 2 {
		t.Errorf("login failure = %v, want 2", got)
	}
	if got := labelValue(logins, "result", "rate_limited"); got != 1 {
		t.Errorf("login rate_limited = %v, want 1", got)
	}
}

// TestRecordHTTPStatus_IncrementsCounterWithLabel はHTTPステータスカウンタがラベル付きで増加することを検証する。
func TestRecordHTTPStatus_IncrementsCounterWithLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(404)

	mf := findMetric(t, reg, "blogman_http_status_total")
	if got := labelValue(mf, "status_code", "200"); got != 2 {
		t.Errorf("200 = %v, want 2", got)
	}
	if got := labelValue(mf, "status_code", "404"); got != 1 {
		t.Errorf("404 = %v, want 1", got)
	}
}
