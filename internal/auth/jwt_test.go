package auth

import (
	"errors"
	"testing"
	"time"
)

func TestTokenRoundTrip(t *testing.T) {
	svc := NewTokenService("test-secret", time.Hour)

	token, err := svc.Issue("user-123")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	userID, err := svc.Verify(token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if userID != "user-123" {
		t.Errorf("userID = %s, want user-123", userID)
	}
}

func TestTokenSingleCharMutation(t *testing.T) {
	svc := NewTokenService("test-secret", time.Hour)

	token, err := svc.Issue("user-123")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	// Flipping any single character must invalidate the token. 'A' and 'Q'
	// differ in a high bit of the base64 alphabet, so the decoded bytes
	// change even for the final character of a segment.
	for i := 0; i < len(token); i++ {
		mutated := []byte(token)
		if mutated[i] == 'Q' {
			mutated[i] = 'A'
		} else {
			mutated[i] = 'Q'
		}

		if _, err := svc.Verify(string(mutated)); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("mutation at %d: error = %v, want ErrInvalidToken", i, err)
		}
	}
}

func TestTokenMalformed(t *testing.T) {
	svc := NewTokenService("test-secret", time.Hour)

	for _, token := range []string{"", "garbage", "a.b", "a.b.c.d"} {
		if _, err := svc.Verify(token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Verify(%q) error = %v, want ErrInvalidToken", token, err)
		}
	}
}

func TestTokenExpired(t *testing.T) {
	svc := NewTokenService("test-secret", -time.Minute)

	token, err := svc.Issue("user-123")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	if _, err := svc.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("error = %v, want ErrInvalidToken", err)
	}
}

func TestTokenWrongSecret(t *testing.T) {
	issuer := NewTokenService("secret-a", time.Hour)
	verifier := NewTokenService("secret-b", time.Hour)

	token, err := issuer.Issue("user-123")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	if _, err := verifier.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("error = %v, want ErrInvalidToken", err)
	}
}
