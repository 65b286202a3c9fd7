package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/jwtpizza/internal/model"
)

// pqUniqueViolation はPostgreSQLの一意制約違反のエラーコード。
const pqUniqueViolation = "23505"

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// FindByEmail はメールアドレスでユーザーを取得する。大文字小文字は区別しない。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	user := &model.User{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, email, password_hash, created_at, updated_at
		 FROM users WHERE lower(email) = lower($1)`,
		email,
	).Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.CreatedAt, &user.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}

	if user.Roles, err = r.findRoles(ctx, user.ID); err != nil {
		return nil, err
	}
	return user, nil
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id int64) (*model.User, error) {
	user := &model.User{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, email, password_hash, created_at, updated_at
		 FROM users WHERE id = $1`,
		id,
	).Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.CreatedAt, &user.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}

	if user.Roles, err = r.findRoles(ctx, user.ID); err != nil {
		return nil, err
	}
	return user, nil
}

// CreateWithRoles はユーザーとロール付与を同一トランザクションで作成する。
func (r *PostgresUserRepo) CreateWithRoles(ctx context.Context, user *model.User) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	err = tx.QueryRowContext(ctx,
		`INSERT INTO users (name, email, password_hash, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $4)
		 RETURNING id`,
		user.Name, user.Email, user.PasswordHash, now,
	).Scan(&user.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrEmailTaken
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}

	for _, ra := range user.Roles {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO user_roles (user_id, role, object_id) VALUES ($1, $2, $3)`,
			user.ID, string(ra.Role), ra.ObjectID,
		)
		if err != nil {
			return fmt.Errorf("failed to insert role assignment: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	user.CreatedAt = now
	user.UpdatedAt = now
	return nil
}

// UpdateCredentials はメールアドレスとパスワードハッシュを更新する。
func (r *PostgresUserRepo) UpdateCredentials(ctx context.Context, id int64, email, passwordHash string) error {
	sets := []string{"updated_at = now()"}
	args := []any{}

	if email != "" {
		args = append(args, email)
		sets = append(sets, fmt.Sprintf("email = $%d", len(args)))
	}
	if passwordHash != "" {
		args = append(args, passwordHash)
		sets = append(sets, fmt.Sprintf("password_hash = $%d", len(args)))
	}
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE users SET %s WHERE id = $%d`, strings.Join(sets, ", "), len(args))
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrEmailTaken
		}
		return fmt.Errorf("failed to update user: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("user not found: %d", id)
	}
	return nil
}

// findRoles はユーザーのロール付与をID順に取得する。
func (r *PostgresUserRepo) findRoles(ctx context.Context, userID int64) ([]model.RoleAssignment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT role, object_id FROM user_roles WHERE user_id = $1 ORDER BY id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to find user roles: %w", err)
	}
	defer rows.Close()

	roles := []model.RoleAssignment{}
	for rows.Next() {
		var ra model.RoleAssignment
		var role string
		if err := rows.Scan(&role, &ra.ObjectID); err != nil {
			return nil, fmt.Errorf("failed to scan user role: %w", err)
		}
		ra.Role = model.Role(role)
		roles = append(roles, ra)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate user roles: %w", err)
	}
	return roles, nil
}

// isUniqueViolation は一意制約違反かどうかを判定する。
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pqUniqueViolation
	}
	return false
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
