package crypto

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/99minutos/identity-service/internal/core/domain"
)

func TestBcryptHasher_HashAndVerify(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	hash, err := h.Hash("123456")
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	if hash == "123456" || !strings.HasPrefix(hash, "$2") {
		t.Fatalf("unexpected hash %q", hash)
	}
	if !h.Verify("123456", hash) {
		t.Fatalf("expected password to verify")
	}
	if h.Verify("654321", hash) {
		t.Fatalf("wrong password verified")
	}
}

func TestBcryptHasher_SaltsEachHash(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	a, _ := h.Hash("secret")
	b, _ := h.Hash("secret")
	if a == b {
		t.Fatalf("expected distinct salts")
	}
}

func TestBcryptHasher_Edges(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	if _, err := h.Hash(""); err == nil {
		t.Fatalf("expected error for empty password")
	}
	if h.Verify("x", "") || h.Verify("x", "not-a-hash") {
		t.Fatalf("malformed hash must not verify")
	}
	if NewBcryptHasher(99).cost != bcrypt.DefaultCost {
		t.Fatalf("out of range cost should fall back to default")
	}
}

func TestBcryptHasher_TooLongIsInvalidInput(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	if _, err := h.Hash(strings.Repeat("a", MaxPasswordBytes)); err != nil {
		t.Fatalf("72 bytes must hash: %v", err)
	}
	_, err := h.Hash(strings.Repeat("a", MaxPasswordBytes+1))
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
