// Package devicekey manages the long-lived P-256 signing key that
// identifies this device to the auth API: load-or-create against a
// hardware-backed key store, derive its canonical JWK, and compute the
// wire thumbprint both the attestation flow and the server rely on.
package devicekey

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/sha256"
	"fmt"

	"github.com/GateAI-net/gate-ios/codec"
)

// JWK is the public-key view of Material, serialized in the exact member
// order the wire contract fixes: crv, kty, x, y. Field declaration order
// controls encoding/json's output order, so marshaling this struct (as
// the DPoP header does) emits the members in that order. The canonical
// bytes used for the thumbprint and client-data hash are built
// separately by canonicalJWKBytes.
type JWK struct {
	Crv string `json:"crv"`
	Kty string `json:"kty"`
	X   string `json:"x"`
	Y   string `json:"y"`
}

// Material is the long-lived device keypair: an opaque, hardware-bound
// signing handle plus the public JWK and thumbprint derived from it.
// Exactly one Material exists per (process, bundle identity); the
// Signer is never copied off the device it was created on.
type Material struct {
	Signer     crypto.Signer
	PublicJWK  JWK
	Thumbprint string

	canonicalJWK []byte
}

// CanonicalJWK returns the exact byte sequence
// {"crv":"P-256","kty":"EC","x":"<x>","y":"<y>"}, member order and
// whitespace fixed by the wire contract, that both the thumbprint and
// every client-data hash are computed over.
func (m *Material) CanonicalJWK() []byte {
	return m.canonicalJWK
}

// NewMaterial derives a Material from an existing P-256 signer. The
// signer's public key must be on P-256; any other curve is a
// programming error in the caller (key stores in this module only ever
// generate P-256 keys).
func NewMaterial(signer crypto.Signer) (*Material, error) {
	pub, ok := signer.Public().(*ecdsa.PublicKey)
	if !ok || pub.Curve != elliptic.P256() {
		return nil, fmt.Errorf("devicekey: signer public key is not P-256")
	}

	// elliptic.Marshal's uncompressed SEC1 form is 0x04 ‖ x ‖ y, 32
	// bytes each for P-256; FillBytes guarantees that fixed width even
	// when the coordinate's big-endian form would otherwise be shorter.
	var xb, yb [32]byte
	pub.X.FillBytes(xb[:])
	pub.Y.FillBytes(yb[:])

	jwk := JWK{
		Crv: "P-256",
		Kty: "EC",
		X:   codec.Base64URLEncode(xb[:]),
		Y:   codec.Base64URLEncode(yb[:]),
	}
	canonical := canonicalJWKBytes(jwk)
	sum := sha256.Sum256(canonical)

	return &Material{
		Signer:       signer,
		PublicJWK:    jwk,
		Thumbprint:   codec.Base64URLEncode(sum[:]),
		canonicalJWK: canonical,
	}, nil
}

// canonicalJWKBytes hand-builds the wire-fixed canonical form rather than
// going through encoding/json: the contract requires an exact literal
// byte sequence regardless of what a JSON library's default marshaling
// would produce, so it is spelled out here rather than relied upon.
func canonicalJWKBytes(jwk JWK) []byte {
	return []byte(fmt.Sprintf(`{"crv":%q,"kty":%q,"x":%q,"y":%q}`, jwk.Crv, jwk.Kty, jwk.X, jwk.Y))
}
