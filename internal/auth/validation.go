package auth

import (
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"github.com/hitoshi/jwtpizza/internal/model"
)

// MinPasswordLength はパスワードの最小文字数。
const MinPasswordLength = 8

// 入力エラーのメッセージ。既存クライアントが表示する文言と一致させている。
const (
	msgAllFieldsRequired = "All fields are required"
	msgInvalidEmail      = "Invalid email format"
	msgPasswordTooShort  = "Password must be at least 8 characters"
	msgNothingToUpdate   = "Email or password is required"
	msgRoleRequired      = "At least one role is required"
	msgInvalidRole       = "Invalid role"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

var (
	emailRules = []validation.Rule{
		validation.Match(emailPattern).Error(msgInvalidEmail),
		is.Email.Error(msgInvalidEmail),
	}
	passwordRules = []validation.Rule{
		validation.RuneLength(MinPasswordLength, 0).Error(msgPasswordTooShort),
	}
)

// nameSanitizer は表示名からHTMLに影響する文字を取り除く。
var nameSanitizer = strings.NewReplacer("<", "", ">", "", "'", "", `"`, "")

// RegisterInput はユーザー登録の入力。
type RegisterInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate は必須項目、メール形式、パスワード長の順に検証し、最初の違反を返す。
func (in RegisterInput) Validate() error {
	for _, v := range []string{in.Name, in.Email, in.Password} {
		if err := validation.Validate(v, validation.Required); err != nil {
			return model.NewValidationError(msgAllFieldsRequired)
		}
	}
	if err := validation.Validate(in.Email, emailRules...); err != nil {
		return model.NewValidationError(msgInvalidEmail)
	}
	if err := validation.Validate(in.Password, passwordRules...); err != nil {
		return model.NewValidationError(msgPasswordTooShort)
	}
	return nil
}

// LoginInput はログインの入力。
type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate は必須項目のみを検証する。形式の誤りは認証失敗として扱う。
func (in LoginInput) Validate() error {
	err := validation.ValidateStruct(&in,
		validation.Field(&in.Email, validation.Required),
		validation.Field(&in.Password, validation.Required),
	)
	if err != nil {
		return model.NewValidationError(msgAllFieldsRequired)
	}
	return nil
}

// UpdateInput はユーザー情報更新の入力。空のフィールドは変更しない。
type UpdateInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate は少なくとも1項目の指定と、指定された項目の形式を検証する。
func (in UpdateInput) Validate() error {
	if in.Email == "" && in.Password == "" {
		return model.NewValidationError(msgNothingToUpdate)
	}
	if err := validation.Validate(in.Email, emailRules...); err != nil {
		return model.NewValidationError(msgInvalidEmail)
	}
	if err := validation.Validate(in.Password, passwordRules...); err != nil {
		return model.NewValidationError(msgPasswordTooShort)
	}
	return nil
}

// validateRoles はロール付与の一覧を検証する。
func validateRoles(roles []model.RoleAssignment) error {
	if len(roles) == 0 {
		return model.NewValidationError(msgRoleRequired)
	}
	for _, ra := range roles {
		if !ra.Role.IsValid() {
			return model.NewValidationError(msgInvalidRole)
		}
	}
	return nil
}

// normalizeEmail はメールアドレスを照合用の形に揃える。
// 保存、検索、ログイン試行制限の識別子はすべてこの形を使う。
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// sanitizeName は表示名を無害化する。
func sanitizeName(name string) string {
	return strings.TrimSpace(nameSanitizer.Replace(name))
}
