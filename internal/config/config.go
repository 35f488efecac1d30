// Package config は環境変数からアプリケーション設定を読み込む。
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Site
	SiteName      string
	BaseURL       string
	WhatsNewCount int

	// Identity provider
	FirebaseAPIKey        string
	FirebaseProjectID     string
	GoogleCredentialsFile string
	IdentityBaseURL       string
	SessionVerify         bool

	// Cookie
	CookieExpiresDays int
	CookieSecure      bool

	// Sitemap
	SitemapPath            string
	SitemapRefreshInterval time.Duration

	// Media
	MediaDir           string
	MediaMaxSize       int64
	MediaMaxConcurrent int

	// Rate Limit
	LoginRateLimit int

	// Server
	ServerPort   string
	MaxBodyBytes int64

	// Observability
	OTelEnabled    bool
	MetricsEnabled bool
	Environment    string

	// CORS
	CORSAllowedOrigin string
}

// SessionTTL はセッションCookieの有効期間を返す。
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.CookieExpiresDays) * 24 * time.Hour
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.BaseURL = strings.TrimRight(os.Getenv("BASE_URL"), "/")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	cfg.FirebaseAPIKey = os.Getenv("FIREBASE_API_KEY")
	if cfg.FirebaseAPIKey == "" {
		missing = append(missing, "FIREBASE_API_KEY")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	cfg.SiteName = getEnvString("SITE_NAME", "blogman")
	cfg.WhatsNewCount = getEnvInt("WHATS_NEW_COUNT", 5)

	cfg.FirebaseProjectID = getEnvString("FIREBASE_PROJECT_ID", "")
	cfg.GoogleCredentialsFile = getEnvString("GOOGLE_APPLICATION_CREDENTIALS", "")
	cfg.IdentityBaseURL = getEnvString("IDENTITY_TOOLKIT_URL", "")
	// プロジェクトIDがない場合は署名を検証できないため、Cookieの有無のみ確認する
	cfg.SessionVerify = getEnvBool("SESSION_VERIFY", cfg.FirebaseProjectID != "") && cfg.FirebaseProjectID != ""

	cfg.CookieExpiresDays = getEnvInt("COOKIE_EXPIRES_DAYS", 5)
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")

	cfg.SitemapPath = getEnvString("SITEMAP_PATH", "sitemap.xml")
	cfg.SitemapRefreshInterval = getEnvDuration("SITEMAP_REFRESH_INTERVAL", time.Hour)

	cfg.MediaDir = getEnvString("MEDIA_DIR", "static/images")
	cfg.MediaMaxSize = getEnvInt64("MEDIA_MAX_SIZE", 10<<20)
	cfg.MediaMaxConcurrent = getEnvInt("MEDIA_MAX_CONCURRENT", 4)

	cfg.LoginRateLimit = getEnvInt("LOGIN_RATE_LIMIT", 10)

	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	// multipartのオーバーヘッド分を画像サイズ上限に上乗せする
	cfg.MaxBodyBytes = getEnvInt64("MAX_BODY_BYTES", cfg.MediaMaxSize+1<<20)

	cfg.OTelEnabled = getEnvBool("OTEL_ENABLED", false)
	cfg.MetricsEnabled = getEnvBool("METRICS_ENABLED", true)
	cfg.Environment = getEnvString("APP_ENV", "development")

	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}
