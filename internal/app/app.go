// Package app は設定の読み込み、依存関係のワイヤリング、サブコマンドの実行を担う。
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/time/rate"

	"github.com/hitoshi/jwtpizza/internal/auth"
	"github.com/hitoshi/jwtpizza/internal/config"
	"github.com/hitoshi/jwtpizza/internal/database"
	"github.com/hitoshi/jwtpizza/internal/handler"
	"github.com/hitoshi/jwtpizza/internal/logger"
	"github.com/hitoshi/jwtpizza/internal/metrics"
	"github.com/hitoshi/jwtpizza/internal/middleware"
	"github.com/hitoshi/jwtpizza/internal/repository"
	"github.com/hitoshi/jwtpizza/internal/worker/cleanup"
)

const (
	// dbReadyAttempts はserve起動時にDB応答を待つ最大試行回数。
	dbReadyAttempts = 10
	// dbReadyInterval はDB応答待ちの試行間隔。
	dbReadyInterval = 2 * time.Second
)

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

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("session_store", cfg.SessionStore),
	)

	switch cmd {
	case CommandMigrate:
		if isMigrateDown(args) {
			return runMigrateDown(cfg)
		}
		return runMigrate(cfg)
	case CommandSeed:
		return runSeed(cfg)
	default:
		return runServe(cfg)
	}
}

// components はserveモードで組み立てる依存関係。
type components struct {
	service     *auth.Service
	verifier    *auth.TokenVerifier
	throttle    *auth.LoginThrottle
	rateLimiter *middleware.RateLimiter
}

// stop はバックグラウンドで動作するタイマーとゴルーチンを停止する。
func (c *components) stop() {
	c.throttle.Stop()
	c.rateLimiter.Stop()
}

// buildComponents は設定に従ってリポジトリ、認証サービス、レート制限を組み立てる。
func buildComponents(cfg *config.Config, db *sql.DB, mc metrics.MetricsCollector) (*components, error) {
	users := repository.NewPostgresUserRepo(db)
	sessions := newSessionRepository(cfg, db)

	vault, err := auth.NewVault(cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to create credential vault: %w", err)
	}

	secret := []byte(cfg.JWTSecret)
	issuer, err := auth.NewTokenIssuer(secret)
	if err != nil {
		return nil, fmt.Errorf("failed to create token issuer: %w", err)
	}
	verifier := auth.NewTokenVerifier(secret, cfg.TokenMaxAge, sessions, mc)

	throttle := auth.NewLoginThrottle(auth.ThrottleConfig{
		MaxAttempts: cfg.LoginMaxAttempts,
		Window:      cfg.LoginThrottleWindow,
	})

	// configのRateLimitGeneralはreq/min単位なのでreq/secに変換する
	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	if cfg.RateLimitGeneral > 0 {
		rateLimiterCfg.Rate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
		rateLimiterCfg.Burst = cfg.RateLimitGeneral
	}

	return &components{
		service:     auth.NewService(users, sessions, vault, throttle, issuer, mc),
		verifier:    verifier,
		throttle:    throttle,
		rateLimiter: middleware.NewRateLimiter(rateLimiterCfg),
	}, nil
}

// newSessionRepository は設定に応じたセッションレジストリを返す。
func newSessionRepository(cfg *config.Config, db *sql.DB) repository.SessionRepository {
	if cfg.SessionStore == config.SessionStoreMemory {
		slog.Warn("using in-memory session store; sessions are lost on restart")
		return repository.NewMemorySessionRepo()
	}
	return repository.NewPostgresSessionRepo(db)
}

// loadSeedUsers はSEED_USERS_PATHのファイル、未指定の場合はデフォルトの管理者を返す。
func loadSeedUsers(cfg *config.Config) ([]auth.SeedUser, error) {
	if cfg.SeedUsersPath == "" {
		slog.Warn("SEED_USERS_PATH is not set; seeding the default admin account")
		return auth.DefaultSeedUsers(), nil
	}
	return auth.LoadSeedUsersFile(cfg.SeedUsersPath)
}

// openDatabase はDB接続を開き、応答するまで待機する。
func openDatabase(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := database.WaitForReady(ctx, db, dbReadyAttempts, dbReadyInterval); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")
	return db, nil
}

// runServe はAPIサーバーモードで起動する。
// マイグレーションと初期ユーザー投入の後、全依存関係をワイヤリングしHTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// 1. DB接続とスキーマの適用
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := runMigrate(cfg); err != nil {
		return err
	}

	// 2. メトリクス
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(reg)

	// 3. 認証コンポーネント
	comps, err := buildComponents(cfg, db, collector)
	if err != nil {
		return err
	}
	defer comps.stop()

	// 4. 初期ユーザーの投入
	seedUsers, err := loadSeedUsers(cfg)
	if err != nil {
		return fmt.Errorf("failed to load seed users: %w", err)
	}
	if _, err := comps.service.Seed(ctx, seedUsers); err != nil {
		return fmt.Errorf("failed to seed users: %w", err)
	}

	// 5. 期限切れセッションの定期削除（PostgreSQLのレジストリのみ）
	if cfg.SessionPurgeInterval > 0 && cfg.SessionStore == config.SessionStorePostgres {
		purgeJob := cleanup.NewSessionPurgeJob(db, slog.Default(), cfg.TokenMaxAge)
		go purgeJob.Start(ctx, cfg.SessionPurgeInterval)
		slog.Info("session purge scheduled", slog.Duration("interval", cfg.SessionPurgeInterval))
	}

	// 6. ルーターの構築
	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            slog.Default(),
		TokenVerifier:     comps.verifier,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       comps.rateLimiter,
		Metrics:           collector,
		HealthChecker:     db,
		MetricsGatherer:   reg,
		AuthService:       comps.service,
	})

	// 7. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
	case <-ctx.Done():
	}
	slog.Info("shutting down API server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
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

	version, dirty, err := database.MigrationVersion(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully",
		slog.Uint64("version", uint64(version)),
		slog.Bool("dirty", dirty),
	)
	return nil
}

// runMigrateDown は最新のマイグレーションを1つ取り消す。
func runMigrateDown(cfg *config.Config) error {
	slog.Info("rolling back latest database migration",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RollbackMigration(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("rollback failed: %w", err)
	}

	slog.Info("database migration rolled back")
	return nil
}

// runSeed はマイグレーション済みのDBに初期ユーザーを投入する。
func runSeed(cfg *config.Config) error {
	ctx := context.Background()

	seedUsers, err := loadSeedUsers(cfg)
	if err != nil {
		return fmt.Errorf("failed to load seed users: %w", err)
	}

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	comps, err := buildComponents(cfg, db, metrics.NopCollector{})
	if err != nil {
		return err
	}
	defer comps.stop()

	created, err := comps.service.Seed(ctx, seedUsers)
	if err != nil {
		return fmt.Errorf("failed to seed users: %w", err)
	}

	slog.Info("seed completed", slog.Int("created", created), slog.Int("defined", len(seedUsers)))
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

// maskDatabaseURL はデータベースURLのパスワードをマスクする。
// 解析できないURLは全体をマスクする。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}
