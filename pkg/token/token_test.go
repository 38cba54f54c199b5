package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestIssueThenVerify(t *testing.T) {
	now := time.Unix(1700000000, 0)

	s, issued, err := Issue("test_secret", "user-1", "u1@example.com", 10*time.Minute, now)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	got, err := Verify(s, "test_secret", now.Add(time.Minute))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if got.UserID != "user-1" || got.Email != "u1@example.com" {
		t.Fatalf("identity mismatch: %+v", got)
	}
	if got.TokenID == "" || got.TokenID != issued.TokenID {
		t.Fatalf("token id mismatch: %q vs %q", got.TokenID, issued.TokenID)
	}
}

func TestVerify_Expired(t *testing.T) {
	now := time.Unix(1700000000, 0)
	s, _, err := Issue("test_secret", "user-1", "", time.Minute, now)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := Verify(s, "test_secret", now.Add(2*time.Minute)); err == nil {
		t.Fatalf("expected expiry error")
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	now := time.Unix(1700000000, 0)
	s, _, err := Issue("test_secret", "user-1", "", time.Minute, now)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := Verify(s, "other_secret", now); err == nil {
		t.Fatalf("expected signature error")
	}
}

func TestVerify_RejectsForeignIssuer(t *testing.T) {
	now := time.Unix(1700000000, 0)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "someone-else",
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(now.Add(10 * time.Minute)),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test_secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := Verify(s, "test_secret", now); err == nil {
		t.Fatalf("expected issuer error")
	}
}
