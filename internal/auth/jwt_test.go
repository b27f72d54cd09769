package auth

import (
	"errors"
	"testing"
	"time"
)

func TestSignerRoundTrip(t *testing.T) {
	s := NewSigner("test-secret", time.Hour)

	token, expiresAt, err := s.GenerateToken("user-1", "a@example.com", "sess-1")
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	if time.Until(expiresAt) <= 0 {
		t.Errorf("expiresAt = %v, want in the future", expiresAt)
	}

	claims, err := s.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}
	if claims.UserID != "user-1" || claims.Email != "a@example.com" || claims.SessionID != "sess-1" {
		t.Errorf("unexpected claims: %+v", claims)
	}
}

func TestSignerRejectsExpiredToken(t *testing.T) {
	s := NewSigner("test-secret", time.Minute)
	issued := time.Now().Add(-2 * time.Hour)
	s.now = func() time.Time { return issued }

	token, _, err := s.GenerateToken("user-1", "a@example.com", "sess-1")
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	s.now = time.Now
	if _, err := s.ValidateToken(token); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("ValidateToken() error = %v, want ErrTokenExpired", err)
	}
}

func TestSignerRejectsForeignSecret(t *testing.T) {
	token, _, err := NewSigner("one", time.Hour).GenerateToken("u", "e", "s")
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	if _, err := NewSigner("two", time.Hour).ValidateToken(token); err == nil {
		t.Error("ValidateToken() with wrong secret succeeded")
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if err := VerifyPassword("s3cret", hash); err != nil {
		t.Errorf("VerifyPassword() correct password error = %v", err)
	}
	if err := VerifyPassword("wrong", hash); err == nil {
		t.Error("VerifyPassword() accepted wrong password")
	}
}
