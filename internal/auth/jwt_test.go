package auth

import (
	"testing"

	"github.com/google/uuid"
)

func TestJWTRoundTrip(t *testing.T) {
	svc := NewJWTService("test-secret", 1)
	userID := uuid.New()

	token, err := svc.Generate(userID, "user@example.com", "user")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	claims, err := svc.Validate(token)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if claims.UserID != userID {
		t.Errorf("UserID = %s, want %s", claims.UserID, userID)
	}
	if claims.Email != "user@example.com" {
		t.Errorf("Email = %s", claims.Email)
	}
	if claims.Role != "user" {
		t.Errorf("Role = %s", claims.Role)
	}
}

func TestJWTRejectsWrongSecret(t *testing.T) {
	token, err := NewJWTService("secret-a", 1).Generate(uuid.New(), "u@example.com", "user")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if _, err := NewJWTService("secret-b", 1).Validate(token); err != ErrInvalidToken {
		t.Fatalf("err = %v, want ErrInvalidToken", err)
	}
}

func TestJWTRejectsGarbage(t *testing.T) {
	if _, err := NewJWTService("secret", 1).Validate("not-a-token"); err != ErrInvalidToken {
		t.Fatalf("err = %v, want ErrInvalidToken", err)
	}
}
