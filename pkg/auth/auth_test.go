package auth

import (
	"testing"
)

func TestGenerateAndValidateJWT(t *testing.T) {
	secret := []byte("unit-test-secret")

	token, err := GenerateJWT("user-1", "user@example.com", "user", secret)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	claims, err := ValidateJWT(token, secret)
	if err != nil {
		t.Fatalf("failed to validate token: %v", err)
	}
	if claims.UserID != "user-1" {
		t.Fatalf("expected user-1, got %s", claims.UserID)
	}
	if claims.Email != "user@example.com" {
		t.Fatalf("unexpected email %s", claims.Email)
	}
}

func TestValidateJWTWrongSecret(t *testing.T) {
	token, err := GenerateJWT("user-1", "user@example.com", "user", []byte("secret-a"))
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	if _, err := ValidateJWT(token, []byte("secret-b")); err == nil {
		t.Fatal("expected validation error with wrong secret")
	}
}

func TestValidateServiceToken(t *testing.T) {
	if err := ValidateServiceToken("", "expected"); err == nil {
		t.Fatal("expected error for empty token")
	}
	if err := ValidateServiceToken("wrong", "expected"); err == nil {
		t.Fatal("expected error for mismatched token")
	}
	if err := ValidateServiceToken("expected", "expected"); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}
