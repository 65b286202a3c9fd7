package middleware

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/jwtpizza/internal/auth"
	"github.com/hitoshi/jwtpizza/internal/model"
)

// errInvalidID はURLパラメータのIDが数値でない場合のエラー。
var errInvalidID = model.NewValidationError("Invalid id")

// targetFunc はリクエストから認可対象を取り出す。
type targetFunc func(r *http.Request) (auth.Target, error)

// RequireRole は指定ロールを持つ利用者のみを通すミドルウェアを返す。
// NewAuthenticateMiddlewareの後に配置する。
// このサービス自身のルートでは使わず、メニューやフランチャイズ管理のルートを載せる側が使う。
func RequireRole(role model.Role) func(next http.Handler) http.Handler {
	return authorizeWith(auth.RequireRole(role), func(*http.Request) (auth.Target, error) {
		return auth.Target{}, nil
	})
}

// RequireSelfOrRole はURLパラメータのユーザーIDが本人であるか、指定ロールを持つ利用者のみを通す。
func RequireSelfOrRole(role model.Role, urlParam string) func(next http.Handler) http.Handler {
	return authorizeWith(auth.SelfOrRole(role), func(r *http.Request) (auth.Target, error) {
		id, err := URLParamInt64(r, urlParam)
		if err != nil {
			return auth.Target{}, err
		}
		return auth.Target{UserID: id}, nil
	})
}

// RequireRoleForResource はURLパラメータのリソースに紐付いた指定ロールを持つ利用者のみを通す。
// フランチャイズ単位のルート（例: /api/franchise/{franchiseId}/store）に掛けるためのもの。
func RequireRoleForResource(role model.Role, urlParam string) func(next http.Handler) http.Handler {
	return authorizeWith(auth.RequireRoleForResource(role), func(r *http.Request) (auth.Target, error) {
		id, err := URLParamInt64(r, urlParam)
		if err != nil {
			return auth.Target{}, err
		}
		return auth.Target{ObjectID: id}, nil
	})
}

func authorizeWith(rule auth.Rule, target targetFunc) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, _ := auth.IdentityFromContext(r.Context())
			if identity == nil {
				WriteAPIError(w, model.ErrAuthenticationRequired)
				return
			}

			t, err := target(r)
			if err != nil {
				WriteAPIError(w, err)
				return
			}

			grant, err := auth.Authorize(identity, rule, t)
			if err != nil {
				slog.Warn("access denied",
					slog.Int64("user_id", identity.UserID),
					slog.String("rule", rule.Name),
					slog.String("path", r.URL.Path),
				)
				WriteAPIError(w, err)
				return
			}

			slog.Info("access granted",
				slog.Int64("user_id", identity.UserID),
				slog.String("rule", rule.Name),
				slog.String("grant", string(grant)),
			)
			next.ServeHTTP(w, r)
		})
	}
}

// URLParamInt64 はchiのURLパラメータを整数として取り出す。
func URLParamInt64(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		return 0, errInvalidID
	}
	return id, nil
}
