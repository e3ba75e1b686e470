package security

import (
	"errors"
	"strings"
	"testing"
)

var cheap = Argon2idParams{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 8, KeyLength: 16}

func TestHashAndVerify(t *testing.T) {
	t.Parallel()

	hash, err := HashPassword("s3cret", cheap)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=1024,t=1,p=1$") {
		t.Fatalf("unexpected encoding %q", hash)
	}
	if err := VerifyPassword(hash, "s3cret"); err != nil {
		t.Fatalf("expected match, got %v", err)
	}
	if err := VerifyPassword(hash, "guess"); !errors.Is(err, ErrPasswordMismatch) {
		t.Fatalf("expected ErrPasswordMismatch, got %v", err)
	}

	other, err := HashPassword("s3cret", cheap)
	if err != nil {
		t.Fatal(err)
	}
	if other == hash {
		t.Fatal("expected a fresh salt per hash")
	}
}

func TestVerifyPasswordRejectsMalformedHashes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		hash string
		want error
	}{
		{"plain", ErrInvalidPasswordHash},
		{"$bcrypt$v=19$m=1,t=1,p=1$c2FsdA$aGFzaA", ErrInvalidPasswordHash},
		{"$argon2id$v=18$m=1,t=1,p=1$c2FsdA$aGFzaA", ErrIncompatiblePasswordVersion},
		{"$argon2id$v=19$m=x,t=1,p=1$c2FsdA$aGFzaA", ErrInvalidPasswordHash},
		{"$argon2id$v=19$m=1,t=1,p=1$!!!$aGFzaA", ErrInvalidPasswordHash},
	}
	for _, tt := range tests {
		if err := VerifyPassword(tt.hash, "pw"); !errors.Is(err, tt.want) {
			t.Fatalf("%q: expected %v, got %v", tt.hash, tt.want, err)
		}
	}
}

func TestCredentialsCheck(t *testing.T) {
	t.Parallel()

	hash, err := HashPassword("s3cret", cheap)
	if err != nil {
		t.Fatal(err)
	}
	creds := Credentials{Username: "office", PasswordHash: hash}
	if !creds.Enabled() || (Credentials{Username: "office"}).Enabled() {
		t.Fatal("unexpected Enabled result")
	}
	if err := creds.Check("office", "s3cret"); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if err := creds.Check("admin", "s3cret"); !errors.Is(err, ErrPasswordMismatch) {
		t.Fatalf("expected mismatch for wrong user, got %v", err)
	}
	if err := creds.Check("office", "nope"); !errors.Is(err, ErrPasswordMismatch) {
		t.Fatalf("expected mismatch for wrong password, got %v", err)
	}
}
