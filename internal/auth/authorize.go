package auth

import (
	"github.com/hitoshi/jwtpizza/internal/model"
)

// Grant は認可を与えた規則の分岐を表す。監査ログに記録する。
type Grant string

const (
	GrantSelf     Grant = "self"
	GrantRole     Grant = "role"
	GrantResource Grant = "resource"
)

// Target は認可判定の対象。
type Target struct {
	UserID   int64 // 操作対象のユーザー（本人判定用）
	ObjectID int64 // 操作対象のリソース（フランチャイズ等）
}

// Rule は名前付きの認可規則。
type Rule struct {
	Name string
	eval func(identity *Identity, target Target) (Grant, bool)
}

// RequireRole はobjectIDに関係なく指定ロールを要求する。
func RequireRole(role model.Role) Rule {
	return Rule{
		Name: "require_role:" + string(role),
		eval: func(identity *Identity, _ Target) (Grant, bool) {
			return GrantRole, identity.HasRole(role)
		},
	}
}

// RequireRoleForResource は対象リソースに紐付いた指定ロールを要求する。
func RequireRoleForResource(role model.Role) Rule {
	return Rule{
		Name: "require_role_for_resource:" + string(role),
		eval: func(identity *Identity, target Target) (Grant, bool) {
			return GrantResource, identity.HasRoleForResource(role, target.ObjectID)
		},
	}
}

// SelfOrRole は本人であれば許可し、そうでなければ指定ロールを要求する。
// 本人判定はロール判定より先に評価する。
func SelfOrRole(role model.Role) Rule {
	return Rule{
		Name: "self_or_role:" + string(role),
		eval: func(identity *Identity, target Target) (Grant, bool) {
			if identity.UserID == target.UserID {
				return GrantSelf, true
			}
			return GrantRole, identity.HasRole(role)
		},
	}
}

// Authorize は規則を評価し、許可した分岐を返す。
// 未認証はmodel.ErrAuthenticationRequired、拒否はmodel.ErrForbiddenを返す。
func Authorize(identity *Identity, rule Rule, target Target) (Grant, error) {
	if identity == nil {
		return "", model.ErrAuthenticationRequired
	}
	grant, ok := rule.eval(identity, target)
	if !ok {
		return "", model.ErrForbidden
	}
	return grant, nil
}
