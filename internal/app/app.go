package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/hitoshi/blogman/internal/config"
	"github.com/hitoshi/blogman/internal/database"
	"github.com/hitoshi/blogman/internal/feed"
	"github.com/hitoshi/blogman/internal/handler"
	"github.com/hitoshi/blogman/internal/logger"
	"github.com/hitoshi/blogman/internal/media"
	"github.com/hitoshi/blogman/internal/metrics"
	"github.com/hitoshi/blogman/internal/middleware"
	"github.com/hitoshi/blogman/internal/security"
	"github.com/hitoshi/blogman/internal/telemetry"
	"github.com/hitoshi/blogman/internal/user"
	"github.com/hitoshi/blogman/internal/view"
	"github.com/hitoshi/blogman/internal/worker/refresh"
)

// version はビルド時に -ldflags "-X" で上書きされる。
var version = "dev"

const serviceName = "blogman"

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck と routes は設定を必要としないため、フル初期化をスキップする
	switch cmd {
	case CommandHealthcheck:
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	case CommandRoutes:
		return runRoutes(w)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("version", version),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandSeed:
		return runSeed(context.Background(), cfg)
	case CommandSignup:
		return runSignup(context.Background(), cfg, args[1:])
	default:
		return runServe(cfg)
	}
}

// runServe はWebサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	ctx := context.Background()
	log := slog.Default()

	// 1. トレース（任意）
	if cfg.OTelEnabled {
		tp, err := telemetry.NewProvider(ctx, telemetry.Config{
			ServiceName:    serviceName,
			ServiceVersion: version,
			Environment:    cfg.Environment,
		})
		if err != nil {
			return fmt.Errorf("failed to set up tracing: %w", err)
		}
		defer shutdownTracing(tp)
	}

	// 2. DB接続
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established")

	// 3. メトリクス
	registry := newRegistry()
	collector := metrics.NewCollector(registry)

	// 4. ドメインサービスの初期化
	content := newContentServices(db, cfg, collector, log)

	authService, err := newAuthService(ctx, cfg, collector, log)
	if err != nil {
		return err
	}
	var verifier middleware.SessionVerifier
	if cfg.SessionVerify {
		verifier = newSessionVerifier(cfg)
	}

	writer := media.NewWriter(cfg.MediaDir, cfg.MediaMaxConcurrent, log)
	store := media.NewStore(cfg.MediaDir, cfg.MediaMaxSize, writer, security.NewSSRFGuard(), collector, log)

	pages, err := view.New(log)
	if err != nil {
		return fmt.Errorf("failed to load templates: %w", err)
	}

	loginLimiter := middleware.NewRateLimiter(middleware.LoginRateLimiterConfig(cfg.LoginRateLimit))
	defer loginLimiter.Stop()
	apiLimiter := middleware.NewRateLimiter(middleware.APIRateLimiterConfig())
	defer apiLimiter.Stop()

	var metricsHandler http.Handler
	if cfg.MetricsEnabled {
		metricsHandler = metrics.Handler(registry)
	}

	// 5. ルーターの構築
	router := handler.NewRouter(&handler.RouterDeps{
		Logger:   log,
		Pages:    pages,
		SiteName: cfg.SiteName,
		BaseURL:  cfg.BaseURL,

		SessionVerifier:   verifier,
		LoginLimiter:      loginLimiter,
		APILimiter:        apiLimiter,
		StatusRecorder:    collector,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		CookieSecure:      cfg.CookieSecure,
		MaxBodyBytes:      cfg.MaxBodyBytes,

		ArticleService:  content.articles,
		TaxonomyService: content.taxonomy,
		Markdown:        content.markdown,
		WhatsNewCount:   cfg.WhatsNewCount,

		AuthService:    authService,
		ProfileService: user.NewService(authService, log),

		MediaStore: store,
		MediaDir:   cfg.MediaDir,

		Sitemap: content.sitemap,
		Feed: feed.NewBuilder(content.articles, feed.Config{
			Title:       cfg.SiteName,
			Description: cfg.SiteName + "の新着記事",
			BaseURL:     cfg.BaseURL,
			ItemCount:   cfg.WhatsNewCount,
		}),
		DB: db,

		MetricsHandler: metricsHandler,
	})

	var root http.Handler = router
	if cfg.OTelEnabled {
		root = otelhttp.NewHandler(router, serviceName,
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	}

	// 6. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      root,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("web server starting",
			slog.String("addr", server.Addr),
			slog.Bool("session_verify", cfg.SessionVerify),
			slog.Bool("metrics", cfg.MetricsEnabled),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-stop:
	case err := <-serveErr:
		writer.Close()
		return fmt.Errorf("server listen error: %w", err)
	}
	slog.Info("shutting down web server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	// 受付済みの画像書き込みを待つ
	writer.Close()

	slog.Info("web server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// サイトマップを定期的に再生成し、メトリクスを/metricsで公開する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established (worker)")

	registry := newRegistry()
	collector := metrics.NewCollector(registry)
	content := newContentServices(db, cfg, collector, slog.Default())

	if cfg.MetricsEnabled {
		metricsServer := &http.Server{
			Addr:              ":" + cfg.ServerPort,
			Handler:           metrics.SetupMetricsRoute(registry),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server error", slog.String("error", err.Error()))
			}
		}()
		defer metricsServer.Close()
	}

	scheduler := refresh.NewScheduler(
		[]refresh.Task{refresh.SitemapTask(content.sitemap.Regenerate)},
		slog.Default(), 1,
	)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Duration("sitemap_refresh_interval", cfg.SitemapRefreshInterval),
		slog.String("sitemap_path", cfg.SitemapPath),
	)

	// スケジューラをメインgoroutineで実行（ブロッキング）
	scheduler.Start(ctx, cfg.SitemapRefreshInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	attrs := []any{}
	if versions, err := database.SchemaVersions(); err == nil && len(versions) > 0 {
		attrs = append(attrs, slog.Uint64("schema_version", uint64(versions[len(versions)-1])))
	}
	slog.Info("database migrations completed successfully", attrs...)
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

func newRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return registry
}

func shutdownTracing(tp *telemetry.Provider) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := tp.Shutdown(ctx); err != nil {
		slog.Error("tracer shutdown failed", slog.String("error", err.Error()))
	}
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
