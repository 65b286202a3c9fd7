package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/jwtpizza/internal/middleware"
	"github.com/hitoshi/jwtpizza/internal/model"
)

// healthCheckTimeout はDB疎通確認のタイムアウト。
const healthCheckTimeout = 3 * time.Second

// HealthChecker はDB疎通確認のインターフェース。*sql.DBが満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

var errUnavailable = &model.APIError{
	Code:    "SERVICE_UNAVAILABLE",
	Message: "Service unavailable",
}

type healthResponse struct {
	Status string `json:"status"`
}

// NewHealthHandler はヘルスチェックハンドラーを返す。
// GET /health
func NewHealthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		if err := checker.PingContext(ctx); err != nil {
			slog.Error("health check failed", slog.String("error", err.Error()))
			middleware.WriteErrorResponse(w, http.StatusServiceUnavailable, errUnavailable)
			return
		}

		writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
	}
}
