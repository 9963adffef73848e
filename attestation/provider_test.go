package attestation

import (
	"context"
	"errors"
	"testing"

	"github.com/GateAI-net/gate-ios/autherr"
)

func TestUnsupportedAlwaysFailsAttestationUnavailable(t *testing.T) {
	ctx := context.Background()
	var u Unsupported

	if _, err := u.EnsureKeyID(ctx); !errors.As(err, &autherr.AttestationUnavailable{}) {
		t.Fatalf("EnsureKeyID: expected AttestationUnavailable, got %v", err)
	}
	if _, err := u.Attest(ctx, "k", [32]byte{}); !errors.As(err, &autherr.AttestationUnavailable{}) {
		t.Fatalf("Attest: expected AttestationUnavailable, got %v", err)
	}
	if err := u.MarkAttested(ctx, "k"); !errors.As(err, &autherr.AttestationUnavailable{}) {
		t.Fatalf("MarkAttested: expected AttestationUnavailable, got %v", err)
	}
	if _, err := u.GenerateAssertion(ctx, "k", [32]byte{}); !errors.As(err, &autherr.AttestationUnavailable{}) {
		t.Fatalf("GenerateAssertion: expected AttestationUnavailable, got %v", err)
	}
	if err := u.Clear(ctx); !errors.As(err, &autherr.AttestationUnavailable{}) {
		t.Fatalf("Clear: expected AttestationUnavailable, got %v", err)
	}
}

func TestMockEnsureKeyIDNeverMarksAttested(t *testing.T) {
	ctx := context.Background()
	m := &Mock{}

	keyID, err := m.EnsureKeyID(ctx)
	if err != nil {
		t.Fatalf("EnsureKeyID: %v", err)
	}
	if keyID == "" {
		t.Fatal("expected non-empty key id")
	}

	if _, err := m.GenerateAssertion(ctx, keyID, [32]byte{}); err == nil {
		t.Fatal("expected NotAttestedError before registration")
	} else {
		var notAttested NotAttestedError
		if !errors.As(err, &notAttested) {
			t.Fatalf("expected NotAttestedError, got %T: %v", err, err)
		}
	}
}

func TestMockRegistrationFlowEnablesAssertions(t *testing.T) {
	ctx := context.Background()
	m := &Mock{}

	keyID, err := m.EnsureKeyID(ctx)
	if err != nil {
		t.Fatalf("EnsureKeyID: %v", err)
	}
	if _, err := m.Attest(ctx, keyID, [32]byte{}); err != nil {
		t.Fatalf("Attest: %v", err)
	}
	if err := m.MarkAttested(ctx, keyID); err != nil {
		t.Fatalf("MarkAttested: %v", err)
	}

	assertion, err := m.GenerateAssertion(ctx, keyID, [32]byte{})
	if err != nil {
		t.Fatalf("GenerateAssertion after registration: %v", err)
	}
	if len(assertion) == 0 {
		t.Fatal("expected non-empty assertion")
	}
}

func TestMockInvalidateNextKeySignalsInvalidKeyError(t *testing.T) {
	ctx := context.Background()
	m := &Mock{}
	keyID, _ := m.EnsureKeyID(ctx)
	_, _ = m.Attest(ctx, keyID, [32]byte{})
	_ = m.MarkAttested(ctx, keyID)

	m.InvalidateNextKey()
	_, err := m.GenerateAssertion(ctx, keyID, [32]byte{})
	var invalid InvalidKeyError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidKeyError, got %T: %v", err, err)
	}

	if err := m.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	newKeyID, err := m.EnsureKeyID(ctx)
	if err != nil {
		t.Fatalf("EnsureKeyID after clear: %v", err)
	}
	if newKeyID == keyID {
		t.Fatal("expected a fresh key id after clear")
	}
}
