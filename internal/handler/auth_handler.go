// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/jwtpizza/internal/auth"
	"github.com/hitoshi/jwtpizza/internal/middleware"
	"github.com/hitoshi/jwtpizza/internal/model"
)

// maxRequestBodySize はリクエストボディの上限（1MB）。
const maxRequestBodySize = 1 << 20

// errInvalidJSON はリクエストボディがJSONとして解釈できない場合のエラー。
var errInvalidJSON = model.NewValidationError("Invalid request body")

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Register(ctx context.Context, in auth.RegisterInput) (*auth.AuthResult, error)
	Login(ctx context.Context, in auth.LoginInput) (*auth.AuthResult, error)
	Logout(ctx context.Context, identity *auth.Identity, token string) error
	UpdateUser(ctx context.Context, identity *auth.Identity, userID int64, in auth.UpdateInput) (*model.User, error)
	CurrentUser(ctx context.Context, identity *auth.Identity) (*model.User, error)
}

// AuthHandler は登録・ログイン・ログアウト・資格情報更新のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface) *AuthHandler {
	return &AuthHandler{service: service}
}

// logoutResponse はログアウト成功時のレスポンス。
type logoutResponse struct {
	Message string `json:"message"`
}

// Register はユーザーを登録し、ユーザー情報とトークンを返す。
// POST /api/auth
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var in auth.RegisterInput
	if err := decodeJSON(w, r, &in); err != nil {
		middleware.WriteAPIError(w, err)
		return
	}

	result, err := h.service.Register(r.Context(), in)
	if err != nil {
		middleware.WriteAPIError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Login は資格情報を検証し、ユーザー情報とトークンを返す。
// PUT /api/auth
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var in auth.LoginInput
	if err := decodeJSON(w, r, &in); err != nil {
		middleware.WriteAPIError(w, err)
		return
	}

	result, err := h.service.Login(r.Context(), in)
	if err != nil {
		middleware.WriteAPIError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Logout は現在のトークンに対応するセッションを削除する。
// DELETE /api/auth
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())

	if err := h.service.Logout(r.Context(), identity, middleware.BearerToken(r)); err != nil {
		middleware.WriteAPIError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, logoutResponse{Message: "logout successful"})
}

// UpdateUser はメールアドレスとパスワードを更新し、更新後のユーザーを返す。
// PUT /api/auth/{userId}
func (h *AuthHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.URLParamInt64(r, "userId")
	if err != nil {
		middleware.WriteAPIError(w, err)
		return
	}

	var in auth.UpdateInput
	if err := decodeJSON(w, r, &in); err != nil {
		middleware.WriteAPIError(w, err)
		return
	}

	identity, _ := auth.IdentityFromContext(r.Context())
	user, err := h.service.UpdateUser(r.Context(), identity, userID, in)
	if err != nil {
		middleware.WriteAPIError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// decodeJSON はリクエストボディをdstにデコードする。
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errInvalidJSON
	}
	return nil
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}
