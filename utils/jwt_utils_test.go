package utils

import (
	"errors"
	"testing"
	"time"
)

func TestTokenManager_RoundTrip(t *testing.T) {
	m := NewTokenManager("test-secret", time.Hour)

	token, err := m.GenerateToken("64b000000000000000000001", "ana@example.com")
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	claims, err := m.ValidateToken(token, PurposeAccess)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if claims.UserID != "64b000000000000000000001" || claims.Email != "ana@example.com" {
		t.Errorf("unexpected claims: %+v", claims)
	}
}

func TestTokenManager_RejectsWrongPurpose(t *testing.T) {
	m := NewTokenManager("test-secret", time.Hour)

	reset, err := m.GenerateResetToken("64b000000000000000000001", "ana@example.com", "nonce-1", 15*time.Minute)
	if err != nil {
		t.Fatalf("GenerateResetToken failed: %v", err)
	}
	if _, err := m.ValidateToken(reset, PurposeAccess); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("reset token accepted as access token, err = %v", err)
	}
	claims, err := m.ValidateToken(reset, PurposePasswordReset)
	if err != nil {
		t.Fatalf("reset token rejected: %v", err)
	}
	if claims.ID != "nonce-1" {
		t.Errorf("jti = %q, want nonce-1", claims.ID)
	}
}

func TestTokenManager_RejectsExpiredAndForeignTokens(t *testing.T) {
	m := NewTokenManager("test-secret", time.Minute)
	issued := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return issued }

	token, err := m.GenerateToken("64b000000000000000000001", "ana@example.com")
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	m.now = func() time.Time { return issued.Add(2 * time.Minute) }
	if _, err := m.ValidateToken(token, PurposeAccess); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expired token accepted, err = %v", err)
	}

	other := NewTokenManager("other-secret", time.Hour)
	foreign, err := other.GenerateToken("64b000000000000000000001", "ana@example.com")
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}
	if _, err := m.ValidateToken(foreign, PurposeAccess); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("token signed with another secret accepted, err = %v", err)
	}
}
