package auth

import "testing"

func TestPasswordRoundTrip(t *testing.T) {
	salt, err := GenerateSalt()
	if err != nil {
		t.Fatalf("GenerateSalt: %v", err)
	}

	hash, err := HashPassword("correct horse", salt)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}

	if !VerifyPassword("correct horse", salt, hash) {
		t.Error("VerifyPassword should accept the original password")
	}
	if VerifyPassword("wrong password", salt, hash) {
		t.Error("VerifyPassword should reject a different password")
	}
}

func TestGenerateSaltIsRandomAndCorrectLength(t *testing.T) {
	a, _ := GenerateSalt()
	b, _ := GenerateSalt()
	if a == b {
		t.Error("two GenerateSalt calls produced the same salt")
	}
	if len(a) != 64 {
		t.Errorf("salt length = %d, want 64 hex chars", len(a))
	}
}
