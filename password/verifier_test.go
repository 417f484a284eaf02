package password

import (
	"errors"
	"testing"
)

func fastConfig() Config {
	return Config{
		Memory:      8192,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func newTestVerifier(t *testing.T) *Verifier {
	t.Helper()
	hasher, err := NewArgon2(fastConfig())
	if err != nil {
		t.Fatalf("NewArgon2: %v", err)
	}
	v, err := NewVerifier(hasher)
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}
	return v
}

func TestVerifierCheckSalted(t *testing.T) {
	v := newTestVerifier(t)

	hash, err := v.HashSalted("correct-horse-battery", "s4lt")
	if err != nil {
		t.Fatalf("HashSalted: %v", err)
	}
	if err := v.Check("correct-horse-battery", "s4lt", hash); err != nil {
		t.Fatalf("expected match, got %v", err)
	}
	if err := v.Check("correct-horse-battery", "other", hash); !errors.Is(err, ErrMismatch) {
		t.Fatalf("expected ErrMismatch for wrong salt, got %v", err)
	}
	if err := v.Check("wrong-horse-battery", "s4lt", hash); !errors.Is(err, ErrMismatch) {
		t.Fatalf("expected ErrMismatch for wrong password, got %v", err)
	}
}

func TestVerifierCheckEmptySalt(t *testing.T) {
	v := newTestVerifier(t)

	hash, err := v.HashSalted("correct-horse-battery", "")
	if err != nil {
		t.Fatalf("HashSalted: %v", err)
	}
	if err := v.Check("correct-horse-battery", "", hash); err != nil {
		t.Fatalf("expected match, got %v", err)
	}
}

func TestVerifierCheckMalformedHash(t *testing.T) {
	v := newTestVerifier(t)
	err := v.Check("correct-horse-battery", "", "not-a-phc-string")
	if err == nil || errors.Is(err, ErrMismatch) {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestVerifierDummyDoesNotPanic(t *testing.T) {
	v := newTestVerifier(t)
	v.Dummy("whatever")
	v.Dummy("")
	if v.dummyErr != nil {
		t.Fatalf("dummy hash setup failed: %v", v.dummyErr)
	}
	if v.dummyHash == "" {
		t.Fatal("expected dummy hash to be cached")
	}
}

func TestNewVerifierRejectsNil(t *testing.T) {
	if _, err := NewVerifier(nil); err == nil {
		t.Fatal("expected error for nil hasher")
	}
}
