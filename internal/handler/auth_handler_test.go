package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/jwtpizza/internal/auth"
	"github.com/hitoshi/jwtpizza/internal/model"
)

// --- テスト用モック ---

type mockAuthService struct {
	registerFn    func(ctx context.Context, in auth.RegisterInput) (*auth.AuthResult, error)
	loginFn       func(ctx context.Context, in auth.LoginInput) (*auth.AuthResult, error)
	logoutFn      func(ctx context.Context, identity *auth.Identity, token string) error
	updateUserFn  func(ctx context.Context, identity *auth.Identity, userID int64, in auth.UpdateInput) (*model.User, error)
	currentUserFn func(ctx context.Context, identity *auth.Identity) (*model.User, error)
}

func (m *mockAuthService) Register(ctx context.Context, in auth.RegisterInput) (*auth.AuthResult, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, in)
	}
	return nil, errors.New("not implemented")
}

func (m *mockAuthService) Login(ctx context.Context, in auth.LoginInput) (*auth.AuthResult, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, in)
	}
	return nil, errors.New("not implemented")
}

func (m *mockAuthService) Logout(ctx context.Context, identity *auth.Identity, token string) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, identity, token)
	}
	return nil
}

func (m *mockAuthService) UpdateUser(ctx context.Context, identity *auth.Identity, userID int64, in auth.UpdateInput) (*model.User, error) {
	if m.updateUserFn != nil {
		return m.updateUserFn(ctx, identity, userID, in)
	}
	return nil, errors.New("not implemented")
}

func (m *mockAuthService) CurrentUser(ctx context.Context, identity *auth.Identity) (*model.User, error) {
	if m.currentUserFn != nil {
		return m.currentUserFn(ctx, identity)
	}
	return nil, errors.New("not implemented")
}

// mockVerifier はトークン文字列に対応するIdentityを返すTokenVerifier。
type mockVerifier struct {
	identities map[string]*auth.Identity
}

func (v *mockVerifier) Verify(_ context.Context, raw string) (*auth.Identity, error) {
	if raw == "" {
		return nil, model.ErrAuthenticationRequired
	}
	identity, ok := v.identities[raw]
	if !ok {
		return nil, model.ErrInvalidToken
	}
	return identity, nil
}

var (
	testDiner = &auth.Identity{
		UserID: 3,
		Email:  "d@jwt.com",
		Roles:  []model.RoleAssignment{{Role: model.RoleDiner}},
	}
	testAdmin = &auth.Identity{
		UserID: 1,
		Email:  "a@jwt.com",
		Roles:  []model.RoleAssignment{{Role: model.RoleAdmin}},
	}
)

// newTestRouter はモックサービスとBearerトークン"diner-token"/"admin-token"を受け付けるルーターを生成する。
func newTestRouter(svc AuthServiceInterface) http.Handler {
	return NewRouter(&RouterDeps{
		TokenVerifier: &mockVerifier{identities: map[string]*auth.Identity{
			"diner-token": testDiner,
			"admin-token": testAdmin,
		}},
		CORSAllowedOrigin: "http://localhost:5173",
		AuthService:       svc,
	})
}

func doRequest(h http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v\nraw: %s", err, w.Body.String())
	}
	return body["message"]
}

// --- Register ---

func TestAuthHandler_Register_Success(t *testing.T) {
	var got auth.RegisterInput
	svc := &mockAuthService{
		registerFn: func(ctx context.Context, in auth.RegisterInput) (*auth.AuthResult, error) {
			got = in
			return &auth.AuthResult{
				User: &model.User{
					ID:           5,
					Name:         in.Name,
					Email:        in.Email,
					PasswordHash: "$2a$12$secret",
					Roles:        []model.RoleAssignment{{Role: model.RoleDiner}},
				},
				Token: "aaa.bbb.ccc",
			}, nil
		},
	}

	w := doRequest(newTestRouter(svc), http.MethodPost, "/api/auth", "",
		`{"name":"pizza diner","email":"d@jwt.com","password":"diner123"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body=%s", w.Code, http.StatusOK, w.Body.String())
	}
	if got.Email != "d@jwt.com" || got.Name != "pizza diner" || got.Password != "diner123" {
		t.Errorf("service received %+v", got)
	}

	raw := w.Body.String()
	if strings.Contains(raw, "$2a$12$secret") || strings.Contains(raw, "password") {
		t.Errorf("response must not expose password hash: %s", raw)
	}

	var body struct {
		User struct {
			ID    int64  `json:"id"`
			Email string `json:"email"`
			Roles []struct {
				Role string `json:"role"`
			} `json:"roles"`
		} `json:"user"`
		Token string `json:"token"`
	}
	if err := json.Unmarshal([]byte(raw), &body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if body.Token != "aaa.bbb.ccc" {
		t.Errorf("token = %q", body.Token)
	}
	if body.User.ID != 5 || len(body.User.Roles) != 1 || body.User.Roles[0].Role != "diner" {
		t.Errorf("user = %+v", body.User)
	}
}

func TestAuthHandler_Register_InvalidJSON_ReturnsBadRequest(t *testing.T) {
	w := doRequest(newTestRouter(&mockAuthService{}), http.MethodPost, "/api/auth", "", `{invalid`)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if msg := decodeMessage(t, w); msg != "Invalid request body" {
		t.Errorf("message = %q", msg)
	}
}

func TestAuthHandler_Register_ServiceErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"入力不備", model.NewValidationError("Invalid email format"), http.StatusBadRequest},
		{"登録失敗", model.ErrRegistrationFailed, http.StatusBadRequest},
		{"内部エラー", errors.New("db down"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockAuthService{
				registerFn: func(ctx context.Context, in auth.RegisterInput) (*auth.AuthResult, error) {
					return nil, tt.err
				},
			}
			w := doRequest(newTestRouter(svc), http.MethodPost, "/api/auth", "",
				`{"name":"x","email":"x@jwt.com","password":"password1"}`)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

// --- Login ---

func TestAuthHandler_Login_Success(t *testing.T) {
	svc := &mockAuthService{
		loginFn: func(ctx context.Context, in auth.LoginInput) (*auth.AuthResult, error) {
			if in.Email != "a@jwt.com" || in.Password != "admin" {
				t.Errorf("service received %+v", in)
			}
			return &auth.AuthResult{
				User:  &model.User{ID: 1, Email: in.Email, Roles: []model.RoleAssignment{{Role: model.RoleAdmin}}},
				Token: "aaa.bbb.ccc",
			}, nil
		},
	}

	w := doRequest(newTestRouter(svc), http.MethodPut, "/api/auth", "", `{"email":"a@jwt.com","password":"admin"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var result auth.AuthResult
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if result.Token != "aaa.bbb.ccc" {
		t.Errorf("token = %q", result.Token)
	}
}

func TestAuthHandler_Login_Failures(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantMessage string
	}{
		{"資格情報不一致", model.ErrInvalidCredentials, http.StatusUnauthorized, model.ErrInvalidCredentials.Message},
		{"試行制限", model.ErrRateLimited, http.StatusTooManyRequests, model.ErrRateLimited.Message},
		{"必須項目なし", model.NewValidationError("All fields are required"), http.StatusBadRequest, "All fields are required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockAuthService{
				loginFn: func(ctx context.Context, in auth.LoginInput) (*auth.AuthResult, error) {
					return nil, tt.err
				},
			}
			w := doRequest(newTestRouter(svc), http.MethodPut, "/api/auth", "", `{"email":"b@jwt.com","password":"wrong"}`)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if msg := decodeMessage(t, w); msg != tt.wantMessage {
				t.Errorf("message = %q, want %q", msg, tt.wantMessage)
			}
		})
	}
}

// --- Logout ---

func TestAuthHandler_Logout_Success(t *testing.T) {
	var gotToken string
	var gotIdentity *auth.Identity
	svc := &mockAuthService{
		logoutFn: func(ctx context.Context, identity *auth.Identity, token string) error {
			gotIdentity = identity
			gotToken = token
			return nil
		},
	}

	w := doRequest(newTestRouter(svc), http.MethodDelete, "/api/auth", "diner-token", "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if msg := decodeMessage(t, w); msg != "logout successful" {
		t.Errorf("message = %q", msg)
	}
	if gotToken != "diner-token" {
		t.Errorf("token = %q, want %q", gotToken, "diner-token")
	}
	if gotIdentity == nil || gotIdentity.UserID != testDiner.UserID {
		t.Errorf("identity = %+v", gotIdentity)
	}
}

func TestAuthHandler_Logout_NoToken_ReturnsUnauthorized(t *testing.T) {
	called := false
	svc := &mockAuthService{
		logoutFn: func(ctx context.Context, identity *auth.Identity, token string) error {
			called = true
			return nil
		},
	}

	w := doRequest(newTestRouter(svc), http.MethodDelete, "/api/auth", "", "")

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
	if called {
		t.Error("logout must not be called without a token")
	}
}

// --- UpdateUser ---

func TestAuthHandler_UpdateUser_Self(t *testing.T) {
	svc := &mockAuthService{
		updateUserFn: func(ctx context.Context, identity *auth.Identity, userID int64, in auth.UpdateInput) (*model.User, error) {
			if userID != 3 {
				t.Errorf("userID = %d, want 3", userID)
			}
			return &model.User{ID: userID, Email: in.Email, Roles: identity.Roles}, nil
		},
	}

	w := doRequest(newTestRouter(svc), http.MethodPut, "/api/auth/3", "diner-token", `{"email":"new@jwt.com"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body=%s", w.Code, http.StatusOK, w.Body.String())
	}
	var user model.User
	if err := json.NewDecoder(w.Body).Decode(&user); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if user.Email != "new@jwt.com" {
		t.Errorf("email = %q", user.Email)
	}
}

func TestAuthHandler_UpdateUser_Authorization(t *testing.T) {
	tests := []struct {
		name       string
		token      string
		path       string
		wantStatus int
		wantCalled bool
	}{
		{"他人の更新は403", "diner-token", "/api/auth/1", http.StatusForbidden, false},
		{"管理者は他人を更新できる", "admin-token", "/api/auth/3", http.StatusOK, true},
		{"トークンなしは401", "", "/api/auth/3", http.StatusUnauthorized, false},
		{"不正なトークンは401", "forged", "/api/auth/3", http.StatusUnauthorized, false},
		{"数値でないIDは400", "diner-token", "/api/auth/abc", http.StatusBadRequest, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			svc := &mockAuthService{
				updateUserFn: func(ctx context.Context, identity *auth.Identity, userID int64, in auth.UpdateInput) (*model.User, error) {
					called = true
					return &model.User{ID: userID}, nil
				},
			}

			w := doRequest(newTestRouter(svc), http.MethodPut, tt.path, tt.token, `{"password":"newpassword"}`)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if called != tt.wantCalled {
				t.Errorf("service called = %v, want %v", called, tt.wantCalled)
			}
		})
	}
}

func TestAuthHandler_UpdateUser_ValidationError(t *testing.T) {
	svc := &mockAuthService{
		updateUserFn: func(ctx context.Context, identity *auth.Identity, userID int64, in auth.UpdateInput) (*model.User, error) {
			return nil, model.NewValidationError("Email or password is required")
		},
	}

	w := doRequest(newTestRouter(svc), http.MethodPut, "/api/auth/3", "diner-token", `{}`)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if msg := decodeMessage(t, w); msg != "Email or password is required" {
		t.Errorf("message = %q", msg)
	}
}
