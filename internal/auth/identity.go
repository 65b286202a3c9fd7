package auth

import (
	"context"

	"github.com/hitoshi/jwtpizza/internal/model"
)

// Identity は検証済みトークンから得たリクエスト単位の利用者情報。
type Identity struct {
	UserID int64
	Email  string
	Roles  []model.RoleAssignment
}

// HasRole はobjectIDに関係なく指定ロールを持つかを返す。
func (i *Identity) HasRole(role model.Role) bool {
	if i == nil {
		return false
	}
	for _, ra := range i.Roles {
		if ra.Role == role {
			return true
		}
	}
	return false
}

// HasRoleForResource は指定リソースに紐付いたロールを持つかを返す。
func (i *Identity) HasRoleForResource(role model.Role, objectID int64) bool {
	if i == nil {
		return false
	}
	for _, ra := range i.Roles {
		if ra.Role == role && ra.ObjectID == objectID {
			return true
		}
	}
	return false
}

type identityContextKey struct{}

// WithIdentity はIdentityを格納したコンテキストを返す。
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, identity)
}

// IdentityFromContext はコンテキストからIdentityを取得する。
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(identityContextKey{}).(*Identity)
	return identity, ok && identity != nil
}
