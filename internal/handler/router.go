package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/jwtpizza/internal/metrics"
	"github.com/hitoshi/jwtpizza/internal/middleware"
	"github.com/hitoshi/jwtpizza/internal/model"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	TokenVerifier     middleware.TokenVerifier
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Metrics           metrics.MetricsCollector

	// 運用
	HealthChecker   HealthChecker
	MetricsGatherer prometheus.Gatherer

	// 認証
	AuthService AuthServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging → Metrics → RateLimit
//
// Bearerトークンの検証と認可はルートごとに付与する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	mc := deps.Metrics
	if mc == nil {
		mc = metrics.NopCollector{}
	}

	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewMetricsMiddleware(mc))

	// --- 運用エンドポイント（レート制限の対象外） ---
	if deps.HealthChecker != nil {
		r.Get("/health", NewHealthHandler(deps.HealthChecker))
	}
	if deps.MetricsGatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.MetricsGatherer))
	}

	authHandler := NewAuthHandler(deps.AuthService)
	userHandler := NewUserHandler(deps.AuthService)
	authenticate := middleware.NewAuthenticateMiddleware(deps.TokenVerifier)

	r.Group(func(r chi.Router) {
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.Middleware())
		}

		r.Route("/api/auth", func(r chi.Router) {
			// 認証不要
			r.Post("/", authHandler.Register)
			r.Put("/", authHandler.Login)

			// 認証が必要なルート
			r.With(authenticate).Delete("/", authHandler.Logout)
			r.With(authenticate, middleware.RequireSelfOrRole(model.RoleAdmin, "userId")).
				Put("/{userId}", authHandler.UpdateUser)
		})

		r.Route("/api/user", func(r chi.Router) {
			r.Use(authenticate)
			r.Get("/me", userHandler.Me)
		})
	})

	return r
}
