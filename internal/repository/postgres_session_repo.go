package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresSessionRepo はPostgreSQLを使用したセッションレジストリ。
// 各操作は単一のSQL文で完結し、トランザクションを保持しない。
type PostgresSessionRepo struct {
	db *sql.DB
}

// NewPostgresSessionRepo はPostgresSessionRepoを生成する。
func NewPostgresSessionRepo(db *sql.DB) *PostgresSessionRepo {
	return &PostgresSessionRepo{db: db}
}

// Put はセッションキーを登録する。
// 同一キーの同時登録はON CONFLICTで吸収する。
func (r *PostgresSessionRepo) Put(ctx context.Context, key string, userID int64) error {
	if key == "" {
		return ErrEmptySessionKey
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO auth_sessions (session_key, user_id, created_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (session_key) DO NOTHING`,
		key, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// Exists はセッションキーが登録済みかどうかを返す。
func (r *PostgresSessionRepo) Exists(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, nil
	}
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM auth_sessions WHERE session_key = $1)`,
		key,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to find session: %w", err)
	}
	return exists, nil
}

// Remove はセッションキーを削除する。
func (r *PostgresSessionRepo) Remove(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM auth_sessions WHERE session_key = $1`,
		key,
	)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// compile-time interface check
var _ SessionRepository = (*PostgresSessionRepo)(nil)
