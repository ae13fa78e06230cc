package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestIssueAndVerify_RoundTrip(t *testing.T) {
	t.Parallel()

	m := NewManager("test-secret-key", 24*time.Hour)

	tok, err := m.Issue("user-123")
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	got, err := m.Verify(tok)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if got != "user-123" {
		t.Fatalf("subject mismatch: got %q want %q", got, "user-123")
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	t.Parallel()

	issuer := NewManager("secret-a", 24*time.Hour)
	verifier := NewManager("secret-b", 24*time.Hour)

	tok, err := issuer.Issue("u1")
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	_, err = verifier.Verify(tok)
	if err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerify_Expired(t *testing.T) {
	t.Parallel()

	m := NewManager("secret", -1*time.Second)

	tok, err := m.Issue("u1")
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	_, err = m.Verify(tok)
	if err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestVerify_Malformed(t *testing.T) {
	t.Parallel()

	m := NewManager("secret", 24*time.Hour)

	for _, raw := range []string{"", "not-a-token", "a.b.c"} {
		_, err := m.Verify(raw)
		if err != ErrInvalidToken {
			t.Fatalf("token %q: expected ErrInvalidToken, got %v", raw, err)
		}
	}
}

func TestVerify_RejectsUnsignedAlg(t *testing.T) {
	t.Parallel()

	m := NewManager("secret", 24*time.Hour)

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		UserID: "u1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	raw, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("signing none token: %v", err)
	}

	_, err = m.Verify(raw)
	if err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken for alg=none, got %v", err)
	}
}

func TestIssue_ExpiryIsOneTTLOut(t *testing.T) {
	t.Parallel()

	m := NewManager("secret", 24*time.Hour)

	before := time.Now().UTC()

	tok, err := m.Issue("u1")
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	claims := &Claims{}
	_, err = jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte("secret"), nil
	})
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}

	window := claims.ExpiresAt.Sub(claims.IssuedAt.Time)
	if window != 24*time.Hour {
		t.Fatalf("validity window = %v, want 24h", window)
	}
	if claims.IssuedAt.Time.Before(before.Add(-time.Minute)) {
		t.Fatalf("issuedAt too far in the past: %v", claims.IssuedAt.Time)
	}
}
