package middleware

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/jwtpizza/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
// 既存クライアントとの互換のためmessageのみを返す。
type ErrorResponseBody struct {
	Message string `json:"message"`
}

// errInternal はAPIErrorでないエラーに対してクライアントへ返すエラー。
var errInternal = &model.APIError{
	Code:    "INTERNAL_ERROR",
	Message: "Internal server error",
}

// StatusFor はエラーコードに対応するHTTPステータスを返す。
func StatusFor(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeValidationFailed, model.ErrCodeRegistrationFailed, model.ErrCodeUpdateFailed:
		return http.StatusBadRequest
	case model.ErrCodeInvalidCredentials, model.ErrCodeAuthenticationRequired,
		model.ErrCodeInvalidToken, model.ErrCodeSessionExpired:
		return http.StatusUnauthorized
	case model.ErrCodeForbidden:
		return http.StatusForbidden
	case model.ErrCodeUserNotFound:
		return http.StatusNotFound
	case model.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponseBody{Message: apiErr.Message})
}

// WriteAPIError はエラーの種別に応じたステータスでレスポンスを書き込む。
// APIErrorを含まないエラーは内容をログにのみ記録し、500を返す。
func WriteAPIError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		WriteErrorResponse(w, StatusFor(apiErr), apiErr)
		return
	}
	slog.Error("internal error", slog.String("error", err.Error()))
	WriteInternalServerError(w)
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, errInternal)
}
