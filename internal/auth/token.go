package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/hitoshi/jwtpizza/internal/metrics"
	"github.com/hitoshi/jwtpizza/internal/model"
	"github.com/hitoshi/jwtpizza/internal/repository"
)

// DefaultTokenMaxAge はトークンの最大有効期間のデフォルト値。
const DefaultTokenMaxAge = time.Hour

// issuedAtLeeway は発行時刻が検証側の時計より進んでいる場合の許容幅。
const issuedAtLeeway = 30 * time.Second

// TokenSubject はトークンに埋め込むユーザー情報。
type TokenSubject struct {
	ID    int64
	Name  string
	Email string
	Roles []model.RoleAssignment
}

// tokenClaims はトークンのペイロード。
// Rolesはキー自体の欠落と空配列を区別するためポインタで保持する。
type tokenClaims struct {
	UserID int64                   `json:"id"`
	Name   string                  `json:"name,omitempty"`
	Email  string                  `json:"email"`
	Roles  *[]model.RoleAssignment `json:"roles"`
	jwt.RegisteredClaims
}

// DeriveSessionKey はトークンからセッションキー（署名部）を取り出す。
// 3つのセグメントを持たないトークンは空文字を返す。
func DeriveSessionKey(token string) string {
	parts := strings.Split(token, ".")
	if len(parts) < 3 {
		return ""
	}
	return parts[2]
}

// TokenIssuer はHS256で署名したトークンを発行する。
type TokenIssuer struct {
	secret []byte
	now    func() time.Time
}

// NewTokenIssuer はTokenIssuerを生成する。
func NewTokenIssuer(secret []byte) (*TokenIssuer, error) {
	if len(secret) == 0 {
		return nil, errors.New("token secret is required")
	}
	return &TokenIssuer{secret: secret, now: time.Now}, nil
}

// Issue はユーザー情報を埋め込んだトークンを発行する。
// expは付与せず、有効期間は検証側でiatから判定する。
// jtiにより同一ユーザーが同じ秒に発行したトークンでも署名部が異なる。
func (i *TokenIssuer) Issue(subject TokenSubject) (string, error) {
	roles := subject.Roles
	if roles == nil {
		roles = []model.RoleAssignment{}
	}

	claims := tokenClaims{
		UserID: subject.ID,
		Name:   subject.Name,
		Email:  subject.Email,
		Roles:  &roles,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       uuid.NewString(),
			IssuedAt: jwt.NewNumericDate(i.now()),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}

// TokenVerifier はトークンの署名・経過時間・クレーム形式を検証し、
// セッションレジストリで失効していないことを確認する。
type TokenVerifier struct {
	secret   []byte
	maxAge   time.Duration
	sessions repository.SessionRepository
	metrics  metrics.MetricsCollector
	now      func() time.Time
}

// NewTokenVerifier はTokenVerifierを生成する。maxAgeが0の場合はDefaultTokenMaxAgeを使用する。
func NewTokenVerifier(secret []byte, maxAge time.Duration, sessions repository.SessionRepository, mc metrics.MetricsCollector) *TokenVerifier {
	if maxAge <= 0 {
		maxAge = DefaultTokenMaxAge
	}
	if mc == nil {
		mc = metrics.NopCollector{}
	}
	return &TokenVerifier{
		secret:   secret,
		maxAge:   maxAge,
		sessions: sessions,
		metrics:  mc,
		now:      time.Now,
	}
}

// Verify はトークンを検証しIdentityを返す。
// 署名・アルゴリズム・経過時間・クレーム形式の失敗はすべて同一のmodel.ErrInvalidTokenとなる。
func (v *TokenVerifier) Verify(ctx context.Context, raw string) (*Identity, error) {
	if raw == "" {
		v.metrics.RecordTokenVerification(metrics.VerifyMissing)
		return nil, model.ErrAuthenticationRequired
	}

	claims, ok := v.parse(raw)
	if !ok {
		v.metrics.RecordTokenVerification(metrics.VerifyInvalid)
		return nil, model.ErrInvalidToken
	}

	live, err := v.sessions.Exists(ctx, DeriveSessionKey(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to check session: %w", err)
	}
	if !live {
		v.metrics.RecordTokenVerification(metrics.VerifyRevoked)
		return nil, model.ErrSessionExpired
	}

	v.metrics.RecordTokenVerification(metrics.VerifyValid)
	return &Identity{
		UserID: claims.UserID,
		Email:  claims.Email,
		Roles:  *claims.Roles,
	}, nil
}

// parse は署名と経過時間、クレーム形式を検証する。
func (v *TokenVerifier) parse(raw string) (*tokenClaims, bool) {
	claims := &tokenClaims{}
	token, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (any, error) { return v.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(issuedAtLeeway),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil || !token.Valid {
		return nil, false
	}

	if claims.IssuedAt == nil || v.now().Sub(claims.IssuedAt.Time) > v.maxAge {
		return nil, false
	}

	if claims.UserID <= 0 || claims.Email == "" || claims.Roles == nil {
		return nil, false
	}
	for _, ra := range *claims.Roles {
		if !ra.Role.IsValid() {
			return nil, false
		}
	}
	return claims, true
}
