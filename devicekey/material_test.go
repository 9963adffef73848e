package devicekey

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"regexp"
	"testing"

	"github.com/GateAI-net/gate-ios/codec"
)

var canonicalJWKPattern = regexp.MustCompile(`^\{"crv":"P-256","kty":"EC","x":"[^"]+","y":"[^"]+"\}$`)

func TestNewMaterialCanonicalJWKShape(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	mat, err := NewMaterial(key)
	if err != nil {
		t.Fatalf("NewMaterial: %v", err)
	}

	canonical := mat.CanonicalJWK()
	if !canonicalJWKPattern.Match(canonical) {
		t.Fatalf("canonical JWK does not match expected literal form: %s", canonical)
	}

	sum := sha256.Sum256(canonical)
	want := codec.Base64URLEncode(sum[:])
	if mat.Thumbprint != want {
		t.Fatalf("thumbprint mismatch: got %s want %s", mat.Thumbprint, want)
	}
}

func TestNewMaterialRejectsNonP256(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	if _, err := NewMaterial(key); err == nil {
		t.Fatal("expected error constructing Material from a non-P-256 key")
	}
}
