// Package attestation defines the AttestationProvider capability the
// session engine drives to bind a device key to a server-verifiable
// hardware attestation, plus the concrete variants this module ships:
// an Unsupported stub, a TPM-backed provider for Android/desktop
// hardware roots of trust, and the Mock test double.
package attestation

import (
	"context"

	"github.com/GateAI-net/gate-ios/autherr"
)

// Provider is the polymorphic attestation capability the engine drives.
// Every method is keyed by a key_id the provider itself hands out via
// EnsureKeyID.
type Provider interface {
	// EnsureKeyID returns a stored key id if one exists, otherwise
	// generates one via the platform. It must never mark the key as
	// attested.
	EnsureKeyID(ctx context.Context) (string, error)

	// Attest produces a one-time attestation object for keyID bound to
	// clientDataHash. Called at most once per key id over its lifetime.
	Attest(ctx context.Context, keyID string, clientDataHash [32]byte) ([]byte, error)

	// MarkAttested records locally that keyID has completed
	// server-side registration.
	MarkAttested(ctx context.Context, keyID string) error

	// GenerateAssertion produces a fresh assertion for keyID bound to
	// clientDataHash. Called on every token mint.
	//
	// Failure must be classifiable via errors.As into NotAttestedError
	// (registration is still needed) or InvalidKeyError (the key was
	// rejected and must be cleared and regenerated), distinct from a
	// generic AttestationFailed.
	GenerateAssertion(ctx context.Context, keyID string, clientDataHash [32]byte) ([]byte, error)

	// Clear deletes the stored key id, returning the provider to its
	// "absent" state.
	Clear(ctx context.Context) error
}

// NotAttestedError signals that the key exists but has not completed
// server-side registration yet; the engine responds by running the
// registration sub-flow before retrying.
type NotAttestedError struct {
	KeyID string
}

func (e NotAttestedError) Error() string {
	return "attestation key " + e.KeyID + " is not attested yet"
}

// InvalidKeyError signals that the platform rejected the stored key
// outright; the engine responds by clearing it and starting over with a
// freshly generated key id.
type InvalidKeyError struct {
	KeyID string
	Cause error
}

func (e InvalidKeyError) Error() string {
	if e.Cause != nil {
		return "attestation key " + e.KeyID + " is invalid: " + e.Cause.Error()
	}
	return "attestation key " + e.KeyID + " is invalid"
}

func (e InvalidKeyError) Unwrap() error { return e.Cause }

// Unsupported is the Provider variant for platforms with no attestation
// capability at all: every method fails with
// autherr.AttestationUnavailable.
type Unsupported struct{}

func (Unsupported) EnsureKeyID(context.Context) (string, error) {
	return "", autherr.AttestationUnavailable{}
}

func (Unsupported) Attest(context.Context, string, [32]byte) ([]byte, error) {
	return nil, autherr.AttestationUnavailable{}
}

func (Unsupported) MarkAttested(context.Context, string) error {
	return autherr.AttestationUnavailable{}
}

func (Unsupported) GenerateAssertion(context.Context, string, [32]byte) ([]byte, error) {
	return nil, autherr.AttestationUnavailable{}
}

func (Unsupported) Clear(context.Context) error {
	return autherr.AttestationUnavailable{}
}
