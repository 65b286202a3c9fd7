package handler

import (
	"net/http"

	"github.com/hitoshi/jwtpizza/internal/auth"
	"github.com/hitoshi/jwtpizza/internal/middleware"
)

// UserHandler はログイン中のユーザー情報を扱うHTTPハンドラー。
type UserHandler struct {
	service AuthServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service AuthServiceInterface) *UserHandler {
	return &UserHandler{service: service}
}

// Me は現在のログインユーザーをロール付きで返す。
// GET /api/user/me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())

	user, err := h.service.CurrentUser(r.Context(), identity)
	if err != nil {
		middleware.WriteAPIError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}
