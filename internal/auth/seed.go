package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/hitoshi/jwtpizza/internal/model"
	"github.com/hitoshi/jwtpizza/internal/repository"
)

// SeedUser は初期投入するユーザーの定義。
type SeedUser struct {
	Name     string     `yaml:"name"`
	Email    string     `yaml:"email"`
	Password string     `yaml:"password"`
	Roles    []SeedRole `yaml:"roles"`
}

// SeedRole は初期投入するロール付与の定義。
type SeedRole struct {
	Role     string `yaml:"role"`
	ObjectID int64  `yaml:"objectId"`
}

type seedFile struct {
	Users []SeedUser `yaml:"users"`
}

// DefaultSeedUsers はシードファイルが指定されない場合に投入する管理者。
// パスワードは既存クライアントの開発用アカウントに合わせており、最小文字数を満たさない。
func DefaultSeedUsers() []SeedUser {
	return []SeedUser{{
		Name:     "常用名字",
		Email:    "a@jwt.com",
		Password: "admin",
		Roles:    []SeedRole{{Role: string(model.RoleAdmin)}},
	}}
}

// LoadSeedUsers はYAML形式のシード定義を読み込む。
func LoadSeedUsers(r io.Reader) ([]SeedUser, error) {
	var f seedFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to decode seed users: %w", err)
	}
	return f.Users, nil
}

// LoadSeedUsersFile はファイルからシード定義を読み込む。
func LoadSeedUsersFile(path string) ([]SeedUser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open seed file: %w", err)
	}
	defer f.Close()
	return LoadSeedUsers(f)
}

// Seed はユーザーを初期投入し、作成した件数を返す。
// 既に存在するメールアドレスはスキップするため、起動のたびに実行してよい。
// 公開の登録経路と異なりAdminロールを付与できる。
func (s *Service) Seed(ctx context.Context, users []SeedUser) (int, error) {
	created := 0
	for _, su := range users {
		su.Email = normalizeEmail(su.Email)
		if su.Email == "" || su.Password == "" {
			slog.Warn("seed user skipped: email and password are required", slog.String("name", su.Name))
			continue
		}

		existing, err := s.users.FindByEmail(ctx, su.Email)
		if err != nil {
			return created, fmt.Errorf("failed to look up seed user: %w", err)
		}
		if existing != nil {
			continue
		}

		roles := make([]model.RoleAssignment, 0, len(su.Roles))
		for _, r := range su.Roles {
			roles = append(roles, model.RoleAssignment{Role: model.Role(r.Role), ObjectID: r.ObjectID})
		}

		user, err := s.createUser(ctx, &model.User{
			Name:  sanitizeName(su.Name),
			Email: su.Email,
			Roles: roles,
		}, su.Password)
		if errors.Is(err, repository.ErrEmailTaken) {
			continue
		}
		if err != nil {
			return created, fmt.Errorf("failed to seed user %s: %w", su.Email, err)
		}

		created++
		slog.Info("seed user created", slog.Int64("user_id", user.ID))
		if utf8.RuneCountInString(su.Password) < MinPasswordLength {
			slog.Warn("seed user has a weak password; change it before exposing the service",
				slog.Int64("user_id", user.ID),
				slog.String("email", user.Email),
			)
		}
	}
	return created, nil
}
