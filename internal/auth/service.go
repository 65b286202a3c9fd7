// Package auth は資格情報の検証、トークンの発行と検証、ログイン試行制限、ロールによる認可を提供する。
package auth

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/jwtpizza/internal/metrics"
	"github.com/hitoshi/jwtpizza/internal/model"
	"github.com/hitoshi/jwtpizza/internal/repository"
)

// AuthResult は登録・ログイン成功時の応答。
type AuthResult struct {
	User  *model.User `json:"user"`
	Token string      `json:"token"`
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	users    repository.UserRepository
	sessions repository.SessionRepository
	vault    *Vault
	throttle *LoginThrottle
	issuer   *TokenIssuer
	metrics  metrics.MetricsCollector
}

// NewService はServiceを生成する。mcがnilの場合はメトリクスを記録しない。
func NewService(
	users repository.UserRepository,
	sessions repository.SessionRepository,
	vault *Vault,
	throttle *LoginThrottle,
	issuer *TokenIssuer,
	mc metrics.MetricsCollector,
) *Service {
	if mc == nil {
		mc = metrics.NopCollector{}
	}
	return &Service{
		users:    users,
		sessions: sessions,
		vault:    vault,
		throttle: throttle,
		issuer:   issuer,
		metrics:  mc,
	}
}

// Register は一般利用者（Dinerロール）としてユーザーを登録し、ログイン済みのトークンを発行する。
// 公開経路で付与されるのはDinerのみで、Adminはシードからしか作成できない。
// 入力不備以外の失敗は、メールアドレス重複を含めてmodel.ErrRegistrationFailedに集約する。
func (s *Service) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	in.Email = normalizeEmail(in.Email)
	if err := in.Validate(); err != nil {
		return nil, err
	}

	user, err := s.createUser(ctx, &model.User{
		Name:  sanitizeName(in.Name),
		Email: in.Email,
		Roles: []model.RoleAssignment{{Role: model.RoleDiner}},
	}, in.Password)
	if err != nil {
		s.metrics.RecordRegistration(metrics.ResultFailure)
		slog.Warn("registration failed", slog.String("error", err.Error()))
		return nil, model.ErrRegistrationFailed
	}

	token, err := s.startSession(ctx, user)
	if err != nil {
		s.metrics.RecordRegistration(metrics.ResultFailure)
		return nil, err
	}

	s.metrics.RecordRegistration(metrics.ResultSuccess)
	slog.Info("user registered", slog.Int64("user_id", user.ID))
	return &AuthResult{User: user, Token: token}, nil
}

// Login は資格情報を検証しトークンを発行する。
// 試行回数の判定は資格情報の照合より前に行い、上限到達後は正しいパスワードでも拒否する。
func (s *Service) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	in.Email = normalizeEmail(in.Email)
	if err := in.Validate(); err != nil {
		return nil, err
	}

	identifier := in.Email
	if err := s.throttle.CheckAndRecord(identifier); err != nil {
		s.metrics.RecordLoginThrottled()
		slog.Warn("login throttled", slog.Int("attempts", s.throttle.Attempts(identifier)))
		return nil, err
	}

	user, err := s.users.FindByEmail(ctx, in.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		s.vault.VerifyDummy(in.Password)
		s.metrics.RecordAuthAttempt(metrics.ResultFailure)
		return nil, model.ErrInvalidCredentials
	}
	if !s.vault.Verify(in.Password, user.PasswordHash) {
		s.metrics.RecordAuthAttempt(metrics.ResultFailure)
		slog.Info("login failed", slog.Int64("user_id", user.ID))
		return nil, model.ErrInvalidCredentials
	}

	s.throttle.Reset(identifier)

	token, err := s.startSession(ctx, user)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordAuthAttempt(metrics.ResultSuccess)
	slog.Info("user logged in", slog.Int64("user_id", user.ID))
	return &AuthResult{User: user, Token: token}, nil
}

// Logout はトークンに対応するセッションを削除する。
// 署名と有効期間が正しいトークンでも、以後の検証はmodel.ErrSessionExpiredとなる。
func (s *Service) Logout(ctx context.Context, identity *Identity, token string) error {
	if err := s.sessions.Remove(ctx, DeriveSessionKey(token)); err != nil {
		return fmt.Errorf("failed to remove session: %w", err)
	}

	s.metrics.RecordLogout()
	if identity != nil {
		slog.Info("user logged out", slog.Int64("user_id", identity.UserID))
	}
	return nil
}

// UpdateUser はメールアドレスとパスワードを更新する。
// 本人またはAdminのみが実行できる。他のセッションは失効させない。
func (s *Service) UpdateUser(ctx context.Context, identity *Identity, userID int64, in UpdateInput) (*model.User, error) {
	grant, err := Authorize(identity, SelfOrRole(model.RoleAdmin), Target{UserID: userID})
	if err != nil {
		slog.Warn("user update denied",
			slog.Int64("target_user_id", userID),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	in.Email = normalizeEmail(in.Email)
	if err := in.Validate(); err != nil {
		return nil, err
	}

	var hash string
	if in.Password != "" {
		if hash, err = s.vault.Hash(in.Password); err != nil {
			slog.Error("failed to hash password", slog.String("error", err.Error()))
			return nil, model.ErrUpdateFailed
		}
	}

	if err := s.users.UpdateCredentials(ctx, userID, in.Email, hash); err != nil {
		slog.Warn("user update failed",
			slog.Int64("target_user_id", userID),
			slog.String("error", err.Error()),
		)
		return nil, model.ErrUpdateFailed
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.ErrUpdateFailed
	}

	slog.Info("user updated",
		slog.Int64("user_id", identity.UserID),
		slog.Int64("target_user_id", userID),
		slog.String("grant", string(grant)),
	)
	return user, nil
}

// CurrentUser は認証済みユーザーの最新情報を返す。
func (s *Service) CurrentUser(ctx context.Context, identity *Identity) (*model.User, error) {
	if identity == nil {
		return nil, model.ErrAuthenticationRequired
	}
	user, err := s.users.FindByID(ctx, identity.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.ErrUserNotFound
	}
	return user, nil
}

// createUser はロールを検証し、パスワードをハッシュ化してユーザーを作成する。
func (s *Service) createUser(ctx context.Context, user *model.User, password string) (*model.User, error) {
	if err := validateRoles(user.Roles); err != nil {
		return nil, err
	}

	hash, err := s.vault.Hash(password)
	if err != nil {
		return nil, err
	}
	user.PasswordHash = hash

	if err := s.users.CreateWithRoles(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// startSession はトークンを発行しセッションレジストリに登録する。
// 登録に失敗したトークンは検証を通らないため、呼び出し側には返さない。
func (s *Service) startSession(ctx context.Context, user *model.User) (string, error) {
	token, err := s.issuer.Issue(TokenSubject{
		ID:    user.ID,
		Name:  user.Name,
		Email: user.Email,
		Roles: user.Roles,
	})
	if err != nil {
		return "", err
	}

	if err := s.sessions.Put(ctx, DeriveSessionKey(token), user.ID); err != nil {
		return "", fmt.Errorf("failed to register session: %w", err)
	}
	return token, nil
}
