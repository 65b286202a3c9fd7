// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/hitoshi/jwtpizza/internal/auth"
)

// TokenVerifier はトークン検証のインターフェース。
type TokenVerifier interface {
	Verify(ctx context.Context, raw string) (*auth.Identity, error)
}

// NewAuthenticateMiddleware はAuthorizationヘッダーのBearerトークンを検証し、
// Identityをリクエストコンテキストに注入するミドルウェアを返す。
// 失敗時は401（内部エラーは500）を返し、後続のハンドラーを呼ばない。
func NewAuthenticateMiddleware(verifier TokenVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := verifier.Verify(r.Context(), BearerToken(r))
			if err != nil {
				WriteAPIError(w, err)
				return
			}

			setRequestUserID(r.Context(), identity.UserID)
			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), identity)))
		})
	}
}

// BearerToken はAuthorizationヘッダーからBearerトークンを取り出す。
// ヘッダーがない、またはBearer形式でない場合は空文字を返す。
func BearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
