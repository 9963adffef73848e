package dpop

import (
	"testing"
	"time"
)

func TestVerifyAcceptsWellFormedProof(t *testing.T) {
	mat := newTestMaterial(t)
	b := NewBuilder(mat)

	proof, err := b.Proof("GET", "https://api.example.com/token", "server-nonce")
	if err != nil {
		t.Fatalf("Proof: %v", err)
	}

	claims, err := Verify(proof, "GET", "https://api.example.com/token", time.Minute)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Nonce != "server-nonce" {
		t.Fatalf("expected nonce to round-trip, got %q", claims.Nonce)
	}
	if claims.Method != "GET" {
		t.Fatalf("expected method GET, got %q", claims.Method)
	}
}

func TestVerifyRejectsMethodMismatch(t *testing.T) {
	mat := newTestMaterial(t)
	b := NewBuilder(mat)

	proof, err := b.Proof("POST", "https://api.example.com/token", "")
	if err != nil {
		t.Fatalf("Proof: %v", err)
	}
	if _, err := Verify(proof, "GET", "https://api.example.com/token", time.Minute); err == nil {
		t.Fatal("expected method mismatch to be rejected")
	}
}

func TestVerifyRejectsStaleProof(t *testing.T) {
	mat := newTestMaterial(t)
	b := NewBuilder(mat)

	proof, err := b.Proof("GET", "https://api.example.com/token", "", WithIssuedAt(time.Now().Add(-time.Hour).Unix()))
	if err != nil {
		t.Fatalf("Proof: %v", err)
	}
	if _, err := Verify(proof, "GET", "https://api.example.com/token", time.Minute); err == nil {
		t.Fatal("expected stale proof to be rejected")
	}
}

func TestVerifyRejectsTamperedSignature(t *testing.T) {
	mat := newTestMaterial(t)
	b := NewBuilder(mat)

	proof, err := b.Proof("GET", "https://api.example.com/token", "")
	if err != nil {
		t.Fatalf("Proof: %v", err)
	}
	// The last character of the 64-byte signature segment carries ignored
	// padding bits, so alter the one before it, which is all signature data.
	i := len(proof) - 2
	repl := "A"
	if proof[i] == 'A' {
		repl = "B"
	}
	tampered := proof[:i] + repl + proof[i+1:]
	if _, err := Verify(tampered, "GET", "https://api.example.com/token", time.Minute); err == nil {
		t.Fatal("expected tampered signature to be rejected")
	}
}
