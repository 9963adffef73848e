// Package codec implements the byte-level encodings the rest of this
// module depends on: unpadded base64url, and conversion of ASN.1 DER
// ECDSA signatures (what a crypto.Signer hands back) to the fixed-width
// raw r‖s encoding JOSE/DPoP requires.
package codec

import "encoding/base64"

// Base64URLEncode encodes b as unpadded base64url, matching the wire
// encoding used for JWK coordinates, thumbprints, and JWT segments
// throughout this module.
func Base64URLEncode(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

// Base64URLDecode decodes s, tolerating both the canonical unpadded form
// and a padded variant a caller might have supplied by hand.
func Base64URLDecode(s string) ([]byte, error) {
	if b, err := base64.RawURLEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.URLEncoding.DecodeString(s)
}
