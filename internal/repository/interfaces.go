// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/jwtpizza/internal/model"
)

// ErrEmailTaken は登録済みのメールアドレスでユーザーを作成・更新しようとした場合に返される。
var ErrEmailTaken = errors.New("email already registered")

// ErrEmptySessionKey は空のセッションキーを登録しようとした場合に返される。
var ErrEmptySessionKey = errors.New("session key is required")

// UserRepository はユーザーとロール付与の永続化インターフェース。
type UserRepository interface {
	// FindByEmail はメールアドレスでユーザーをロール付きで取得する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// FindByID は指定IDのユーザーをロール付きで取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.User, error)

	// CreateWithRoles はユーザーとロール付与を同一トランザクションで作成し、採番したIDをuserに設定する。
	// メールアドレスが重複する場合はErrEmailTakenを返す。
	CreateWithRoles(ctx context.Context, user *model.User) error

	// UpdateCredentials はメールアドレスとパスワードハッシュを更新する。空文字のフィールドは変更しない。
	UpdateCredentials(ctx context.Context, id int64, email, passwordHash string) error
}

// SessionRepository はセッションレジストリの永続化インターフェース。
// すべての操作は冪等であり、空のキーは常に存在しないものとして扱う。
type SessionRepository interface {
	// Put はセッションキーを登録する。既に存在する場合は何もしない。
	// 空のキーはErrEmptySessionKeyを返す。
	Put(ctx context.Context, key string, userID int64) error
	// Exists はセッションキーが有効かどうかを返す。
	Exists(ctx context.Context, key string) (bool, error)
	// Remove はセッションキーを削除する。存在しない場合もエラーにしない。
	Remove(ctx context.Context, key string) error
}
