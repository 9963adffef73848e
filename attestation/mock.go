package attestation

import (
	"context"
	"fmt"
	"sync"
)

// Mock is a hand-written Provider test double, mirroring the shape of
// this module's other mock capabilities: an in-memory state machine a
// test can script failures into, rather than a generated/mocking
// framework stub.
type Mock struct {
	mu sync.Mutex

	keyID     string
	generated bool
	attested  bool
	invalid   bool

	// AlwaysInvalid forces every GenerateAssertion call to report
	// InvalidKeyError regardless of state, for exercising the "second
	// invalid-key signal propagates" path.
	AlwaysInvalid bool

	// EnsureKeyIDErr, AttestErr, GenerateAssertionErr, ClearErr let a
	// test force a specific call to fail regardless of state.
	EnsureKeyIDErr       error
	AttestErr            error
	GenerateAssertionErr error
	ClearErr             error

	EnsureKeyIDCalls       int
	AttestCalls            int
	MarkAttestedCalls      int
	GenerateAssertionCalls int
	ClearCalls             int
}

var _ Provider = (*Mock)(nil)

func (m *Mock) EnsureKeyID(context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.EnsureKeyIDCalls++
	if m.EnsureKeyIDErr != nil {
		return "", m.EnsureKeyIDErr
	}
	if !m.generated {
		m.keyID = fmt.Sprintf("mock-key-%d", m.EnsureKeyIDCalls)
		m.generated = true
		m.attested = false
		m.invalid = false
	}
	return m.keyID, nil
}

func (m *Mock) Attest(ctx context.Context, keyID string, clientDataHash [32]byte) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AttestCalls++
	if m.AttestErr != nil {
		return nil, m.AttestErr
	}
	return []byte("mock-attestation:" + keyID), nil
}

func (m *Mock) MarkAttested(ctx context.Context, keyID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MarkAttestedCalls++
	m.attested = true
	return nil
}

func (m *Mock) GenerateAssertion(ctx context.Context, keyID string, clientDataHash [32]byte) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GenerateAssertionCalls++
	if m.GenerateAssertionErr != nil {
		return nil, m.GenerateAssertionErr
	}
	if m.AlwaysInvalid {
		return nil, InvalidKeyError{KeyID: keyID}
	}
	if m.invalid {
		return nil, InvalidKeyError{KeyID: keyID}
	}
	if !m.attested {
		return nil, NotAttestedError{KeyID: keyID}
	}
	return []byte("mock-assertion:" + keyID), nil
}

func (m *Mock) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ClearCalls++
	if m.ClearErr != nil {
		return m.ClearErr
	}
	m.generated = false
	m.attested = false
	m.invalid = false
	m.keyID = ""
	return nil
}

// InvalidateNextKey makes every GenerateAssertion call return
// InvalidKeyError until Clear resets the mock, simulating a
// platform-side rejection of an
// already-generated, already-attested key. It marks the key as
// generated and attested so a preceding EnsureKeyID call (the mint
// loop always issues one before its first GenerateAssertion) does not
// clobber the invalidation by treating this as a fresh key.
func (m *Mock) InvalidateNextKey() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generated = true
	m.attested = true
	m.invalid = true
}
