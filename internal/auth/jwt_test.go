package auth

import "testing"

func TestGenerateAndValidateUserToken(t *testing.T) {
	manager := NewTokenManager("test-secret")

	token, err := manager.GenerateUserToken("user-7")
	if err != nil {
		t.Fatalf("GenerateUserToken failed: %v", err)
	}

	claims, err := manager.Validate(token)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	if claims.UserID != "user-7" {
		t.Errorf("Expected user ID user-7, got %s", claims.UserID)
	}
	if claims.Role != "user" {
		t.Errorf("Expected role user, got %s", claims.Role)
	}
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	manager := NewTokenManager("test-secret")
	other := NewTokenManager("other-secret")

	token, err := manager.GenerateServiceToken("user-7")
	if err != nil {
		t.Fatalf("GenerateServiceToken failed: %v", err)
	}

	if _, err := other.Validate(token); err == nil {
		t.Error("Expected validation to fail with wrong secret")
	}
}

func TestValidateRejectsGarbage(t *testing.T) {
	manager := NewTokenManager("test-secret")

	if _, err := manager.Validate("not-a-token"); err == nil {
		t.Error("Expected validation to fail for malformed token")
	}
}
