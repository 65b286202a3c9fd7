package repository

import (
	"context"
	"sync"
	"time"

	"github.com/hitoshi/jwtpizza/internal/model"
)

// MemorySessionRepo はプロセス内メモリを使用したセッションレジストリ。
// 単一インスタンス構成やテストで使用する。プロセス再起動で全セッションが失われる。
type MemorySessionRepo struct {
	mu       sync.RWMutex
	sessions map[string]model.Session
}

// NewMemorySessionRepo はMemorySessionRepoを生成する。
func NewMemorySessionRepo() *MemorySessionRepo {
	return &MemorySessionRepo{
		sessions: make(map[string]model.Session),
	}
}

// Put はセッションキーを登録する。既存キーは上書きせず、空のキーはErrEmptySessionKeyを返す。
func (r *MemorySessionRepo) Put(_ context.Context, key string, userID int64) error {
	if key == "" {
		return ErrEmptySessionKey
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[key]; ok {
		return nil
	}
	r.sessions[key] = model.Session{
		Key:       key,
		UserID:    userID,
		CreatedAt: time.Now(),
	}
	return nil
}

// Exists はセッションキーが登録済みかどうかを返す。
func (r *MemorySessionRepo) Exists(_ context.Context, key string) (bool, error) {
	if key == "" {
		return false, nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.sessions[key]
	return ok, nil
}

// Remove はセッションキーを削除する。
func (r *MemorySessionRepo) Remove(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, key)
	return nil
}

// Len は登録済みセッション数を返す。テスト用。
func (r *MemorySessionRepo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// compile-time interface check
var _ SessionRepository = (*MemorySessionRepo)(nil)
