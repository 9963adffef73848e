package devicekey

import (
	"context"
	"testing"

	"github.com/zalando/go-keyring"
)

func TestKeyringStoreLoadOrCreateIsIdempotent(t *testing.T) {
	keyring.MockInit()
	store := NewKeyringStore("com.gateai.test", nil)

	first, err := store.LoadOrCreate(context.Background())
	if err != nil {
		t.Fatalf("LoadOrCreate (create): %v", err)
	}
	if first.Thumbprint == "" {
		t.Fatal("expected non-empty thumbprint")
	}

	second, err := store.LoadOrCreate(context.Background())
	if err != nil {
		t.Fatalf("LoadOrCreate (load): %v", err)
	}

	if first.Thumbprint != second.Thumbprint {
		t.Fatalf("expected stable thumbprint across calls: %q != %q", first.Thumbprint, second.Thumbprint)
	}
	if string(first.CanonicalJWK()) != string(second.CanonicalJWK()) {
		t.Fatal("expected stable canonical JWK across calls")
	}
}

func TestKeyringStoreScopedByAccount(t *testing.T) {
	keyring.MockInit()
	a := NewKeyringStore("com.gateai.app-a", nil)
	b := NewKeyringStore("com.gateai.app-b", nil)

	matA, err := a.LoadOrCreate(context.Background())
	if err != nil {
		t.Fatalf("LoadOrCreate a: %v", err)
	}
	matB, err := b.LoadOrCreate(context.Background())
	if err != nil {
		t.Fatalf("LoadOrCreate b: %v", err)
	}

	if matA.Thumbprint == matB.Thumbprint {
		t.Fatal("expected distinct bundle identities to receive distinct keys")
	}
}
