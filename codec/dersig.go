package codec

import (
	"encoding/asn1"
	"fmt"
	"math/big"

	"github.com/GateAI-net/gate-ios/autherr"
)

type ecdsaSignature struct {
	R, S *big.Int
}

// DERSignatureToRaw converts an ASN.1 DER-encoded ECDSA signature
// (SEQUENCE of two INTEGERs, the format crypto.Signer.Sign returns for an
// ecdsa.PrivateKey or any hardware-backed equivalent) into the fixed-width
// raw r‖s encoding DPoP/JOSE require: each coordinate left-padded to
// coordLen bytes and concatenated, for a total of 2*coordLen bytes.
//
// The whole of der must be consumed by the SEQUENCE; trailing bytes,
// a non-SEQUENCE outer tag, a non-INTEGER component, or a coordinate
// longer than coordLen all fail with autherr.InvalidFormat.
func DERSignatureToRaw(der []byte, coordLen int) ([]byte, error) {
	var sig ecdsaSignature
	rest, err := asn1.Unmarshal(der, &sig)
	if err != nil {
		return nil, autherr.InvalidFormat{Reason: fmt.Sprintf("malformed DER signature: %s", err)}
	}
	if len(rest) != 0 {
		return nil, autherr.InvalidFormat{Reason: "trailing bytes after DER signature"}
	}
	if sig.R == nil || sig.S == nil || sig.R.Sign() < 0 || sig.S.Sign() < 0 {
		return nil, autherr.InvalidFormat{Reason: "missing or negative signature component"}
	}

	rBytes := unsignedBytes(sig.R)
	sBytes := unsignedBytes(sig.S)
	if len(rBytes) > coordLen || len(sBytes) > coordLen {
		return nil, autherr.InvalidFormat{Reason: "signature component exceeds coordinate width"}
	}

	raw := make([]byte, 2*coordLen)
	copy(raw[coordLen-len(rBytes):coordLen], rBytes)
	copy(raw[2*coordLen-len(sBytes):], sBytes)
	return raw, nil
}

// unsignedBytes returns n's big-endian magnitude with any DER sign-padding
// byte already stripped, since big.Int.Bytes() never includes one.
func unsignedBytes(n *big.Int) []byte {
	return n.Bytes()
}

// RawSignatureToDER is the inverse of DERSignatureToRaw, used where a
// downstream verifier (ecdsa.Verify / crypto/ecdsa) wants the two
// big.Int components directly; it splits the fixed-width r‖s encoding
// back into R and S.
func RawSignatureToDER(raw []byte, coordLen int) (r, s *big.Int, err error) {
	if len(raw) != 2*coordLen {
		return nil, nil, autherr.InvalidFormat{Reason: "raw signature has unexpected length"}
	}
	r = new(big.Int).SetBytes(raw[:coordLen])
	s = new(big.Int).SetBytes(raw[coordLen:])
	return r, s, nil
}
