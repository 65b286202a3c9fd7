// Package model はドメインモデルを定義する。
package model

import "time"

// Role はユーザーに付与されるロールを表す。
// 値は既存クライアントとの互換のため小文字の文字列で保持する。
type Role string

const (
	// RoleDiner は注文を行う一般利用者のロール（グローバル）。
	RoleDiner Role = "diner"
	// RoleAdmin は全操作が可能な管理者ロール（グローバル）。
	RoleAdmin Role = "admin"
	// RoleFranchisee は特定フランチャイズの管理者ロール。ObjectIDにフランチャイズIDを持つ。
	RoleFranchisee Role = "franchisee"
)

// IsValid は定義済みのロールかどうかを返す。
func (r Role) IsValid() bool {
	switch r {
	case RoleDiner, RoleAdmin, RoleFranchisee:
		return true
	default:
		return false
	}
}

// IsGlobal はリソースに紐付かないロールかどうかを返す。
func (r Role) IsGlobal() bool {
	return r == RoleDiner || r == RoleAdmin
}

// RoleAssignment はユーザーへのロール付与を表す。
// グローバルロールのObjectIDは0、Franchiseeはフランチャイズの識別子。
type RoleAssignment struct {
	Role     Role  `json:"role"`
	ObjectID int64 `json:"objectId,omitempty"`
}

// User はサービス利用ユーザーを表す。
type User struct {
	ID           int64            `json:"id"`
	Name         string           `json:"name"`
	Email        string           `json:"email"`
	PasswordHash string           `json:"-"`
	Roles        []RoleAssignment `json:"roles"`
	CreatedAt    time.Time        `json:"-"`
	UpdatedAt    time.Time        `json:"-"`
}

// Session はログイン中のセッションを表す。
// Keyは発行したトークンの署名部であり、トークン全体は保存しない。
type Session struct {
	Key       string
	UserID    int64
	CreatedAt time.Time
}
