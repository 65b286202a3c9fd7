package model

import (
	"errors"
	"fmt"
	"testing"
)

func TestAPIError_Is_MatchesByCode(t *testing.T) {
	err := NewValidationError("Invalid email format")

	if !errors.Is(err, ErrValidationFailed) {
		t.Error("validation error should match ErrValidationFailed")
	}
	if errors.Is(err, ErrInvalidToken) {
		t.Error("validation error should not match ErrInvalidToken")
	}
}

func TestAPIError_Is_ThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("login: %w", ErrRateLimited)

	if !errors.Is(wrapped, ErrRateLimited) {
		t.Error("wrapped error should match ErrRateLimited")
	}

	var apiErr *APIError
	if !errors.As(wrapped, &apiErr) {
		t.Fatal("errors.As should find APIError")
	}
	if apiErr.Message != "Too many login attempts. Please try again later." {
		t.Errorf("message = %q", apiErr.Message)
	}
}

func TestAPIError_AuthenticationFailuresAreDistinct(t *testing.T) {
	authn := []*APIError{ErrAuthenticationRequired, ErrInvalidToken, ErrSessionExpired, ErrInvalidCredentials}
	for _, e := range authn {
		if errors.Is(e, ErrForbidden) {
			t.Errorf("%s must not be conflated with forbidden", e.Code)
		}
		if errors.Is(e, ErrRateLimited) {
			t.Errorf("%s must not be conflated with rate limited", e.Code)
		}
	}
}

func TestRole_IsValid(t *testing.T) {
	tests := []struct {
		role Role
		want bool
	}{
		{RoleDiner, true},
		{RoleAdmin, true},
		{RoleFranchisee, true},
		{Role("owner"), false},
		{Role(""), false},
	}
	for _, tt := range tests {
		if got := tt.role.IsValid(); got != tt.want {
			t.Errorf("Role(%q).IsValid() = %v, want %v", tt.role, got, tt.want)
		}
	}
}

func TestRole_IsGlobal(t *testing.T) {
	if !RoleDiner.IsGlobal() || !RoleAdmin.IsGlobal() {
		t.Error("diner and admin should be global roles")
	}
	if RoleFranchisee.IsGlobal() {
		t.Error("franchisee should be scoped to a franchise")
	}
}
