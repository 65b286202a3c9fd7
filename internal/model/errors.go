// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// Messageはそのままクライアントに返すため、内部の詳細を含めてはならない。
type APIError struct {
	Code    string // エラーコード
	Message string // クライアント向けメッセージ
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Is はエラーコードが一致する場合にtrueを返す。
// メッセージだけが異なるバリデーションエラーも同一種別として扱うため。
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// 定義済みエラーコード
const (
	ErrCodeInvalidCredentials     = "INVALID_CREDENTIALS"
	ErrCodeRateLimited            = "RATE_LIMITED"
	ErrCodeAuthenticationRequired = "AUTHENTICATION_REQUIRED"
	ErrCodeInvalidToken           = "INVALID_TOKEN"
	ErrCodeSessionExpired         = "SESSION_EXPIRED"
	ErrCodeForbidden              = "FORBIDDEN"
	ErrCodeValidationFailed       = "VALIDATION_FAILED"
	ErrCodeRegistrationFailed     = "REGISTRATION_FAILED"
	ErrCodeUpdateFailed           = "UPDATE_FAILED"
	ErrCodeUserNotFound           = "USER_NOT_FOUND"
)

// 認証・認可の失敗を表すエラー。
// 認証段階の失敗は原因を区別しないメッセージを返す（ユーザー列挙対策）。
var (
	ErrInvalidCredentials = &APIError{
		Code:    ErrCodeInvalidCredentials,
		Message: "Invalid credentials",
	}
	ErrRateLimited = &APIError{
		Code:    ErrCodeRateLimited,
		Message: "Too many login attempts. Please try again later.",
	}
	ErrAuthenticationRequired = &APIError{
		Code:    ErrCodeAuthenticationRequired,
		Message: "Authentication required",
	}
	ErrInvalidToken = &APIError{
		Code:    ErrCodeInvalidToken,
		Message: "Invalid token",
	}
	ErrSessionExpired = &APIError{
		Code:    ErrCodeSessionExpired,
		Message: "Session expired",
	}
	ErrForbidden = &APIError{
		Code:    ErrCodeForbidden,
		Message: "Forbidden",
	}
	ErrValidationFailed = &APIError{
		Code:    ErrCodeValidationFailed,
		Message: "Invalid input",
	}
	ErrRegistrationFailed = &APIError{
		Code:    ErrCodeRegistrationFailed,
		Message: "Registration failed",
	}
	ErrUpdateFailed = &APIError{
		Code:    ErrCodeUpdateFailed,
		Message: "Update failed",
	}
	ErrUserNotFound = &APIError{
		Code:    ErrCodeUserNotFound,
		Message: "User not found",
	}
)

// NewValidationError は入力不備を表すエラーを生成する。
// errors.Is(err, ErrValidationFailed) で判定できる。
func NewValidationError(message string) *APIError {
	return &APIError{
		Code:    ErrCodeValidationFailed,
		Message: message,
	}
}
