package auth

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost はパスワードハッシュのデフォルトのワークファクター。
const DefaultBcryptCost = 12

// Vault はパスワードの一方向ハッシュ化と照合を行う。
type Vault struct {
	cost  int
	dummy []byte
}

// NewVault はVaultを生成する。costが0の場合はDefaultBcryptCostを使用する。
// 存在しないユーザーのログインでも照合コストを揃えるため、ダミーハッシュを事前に計算する。
func NewVault(cost int) (*Vault, error) {
	if cost == 0 {
		cost = DefaultBcryptCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost must be between %d and %d, got %d", bcrypt.MinCost, bcrypt.MaxCost, cost)
	}

	dummy, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), cost)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare dummy hash: %w", err)
	}

	return &Vault{cost: cost, dummy: dummy}, nil
}

// Hash は平文パスワードのハッシュを返す。
func (v *Vault) Hash(plaintext string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(plaintext), v.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(h), nil
}

// Verify は平文パスワードがハッシュと一致するかを返す。
// 不一致はfalseを返す。ハッシュ自体が壊れている場合は呼び出し側の不具合としてpanicする。
func (v *Vault) Verify(plaintext, digest string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext))
	if err == nil {
		return true
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false
	}
	panic(fmt.Sprintf("auth: malformed password digest: %v", err))
}

// VerifyDummy はダミーハッシュとの照合を1回行い、結果を捨てる。
func (v *Vault) VerifyDummy(plaintext string) {
	_ = bcrypt.CompareHashAndPassword(v.dummy, []byte(plaintext))
}
