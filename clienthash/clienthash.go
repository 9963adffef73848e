// Package clienthash computes the App-Attest style client-data hash that
// binds an attestation or assertion to both a server-issued nonce and the
// device key presenting it.
package clienthash

import "crypto/sha256"

// ClientDataHash returns SHA256(nonce ‖ SHA256(canonicalJWK)), the value
// signed by the attestation key on every attest/generate_assertion call.
// canonicalJWK must already be the exact byte-for-byte canonical JWK
// serialization (see devicekey.Material.CanonicalJWK) — this function does
// no normalization of its own.
func ClientDataHash(nonce, canonicalJWK []byte) [32]byte {
	inner := sha256.Sum256(canonicalJWK)
	h := sha256.New()
	h.Write(nonce)
	h.Write(inner[:])
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
