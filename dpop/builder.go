// Package dpop builds RFC 9449-style DPoP proofs bound to the device
// key: a compact JWT whose header and payload are serialized with
// sorted keys and whose signature is raw r‖s ECDSA, not the ASN.1 DER a
// crypto.Signer hands back.
package dpop

import (
	"crypto"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/GateAI-net/gate-ios/autherr"
	"github.com/GateAI-net/gate-ios/codec"
	"github.com/GateAI-net/gate-ios/devicekey"
)

// header is the DPoP JWT header. Field declaration order matches the
// wire contract's sorted-key requirement (alg, jwk, typ); encoding/json
// preserves struct field order, so this needs no custom encoder.
type header struct {
	Alg string        `json:"alg"`
	JWK devicekey.JWK `json:"jwk"`
	Typ string        `json:"typ"`
}

// payload is the DPoP JWT payload, fields declared in sorted-key order:
// htm, htu, iat, jti, nonce.
type payload struct {
	Htm   string `json:"htm"`
	Htu   string `json:"htu"`
	Iat   int64  `json:"iat"`
	Jti   string `json:"jti"`
	Nonce string `json:"nonce,omitempty"`
}

// Builder issues DPoP proofs bound to a single device key. It is
// stateless apart from the borrowed key handle and is safe for
// concurrent use.
type Builder struct {
	material *devicekey.Material
}

// NewBuilder returns a Builder bound to material's signing handle.
func NewBuilder(material *devicekey.Material) *Builder {
	return &Builder{material: material}
}

// Option customizes a single Proof call; used by tests to pin iat/jti
// to deterministic values.
type Option func(*payload)

// WithIssuedAt overrides the iat claim (seconds since epoch).
func WithIssuedAt(iat int64) Option {
	return func(p *payload) { p.Iat = iat }
}

// WithJTI overrides the jti claim.
func WithJTI(jti string) Option {
	return func(p *payload) { p.Jti = jti }
}

// Proof builds a compact DPoP JWT for method/url, optionally echoing a
// server-issued nonce. method is upper-cased per the wire contract;
// url is used verbatim as htu with no normalization.
func (b *Builder) Proof(method, url, nonce string, opts ...Option) (string, error) {
	p := payload{
		Htm:   strings.ToUpper(method),
		Htu:   url,
		Iat:   time.Now().Unix(),
		Jti:   uuid.NewString(),
		Nonce: nonce,
	}
	for _, opt := range opts {
		opt(&p)
	}

	h := header{Alg: "ES256", JWK: b.material.PublicJWK, Typ: "dpop+jwt"}

	headerJSON, err := json.Marshal(h)
	if err != nil {
		return "", autherr.SigningFailure{Cause: err}
	}
	payloadJSON, err := json.Marshal(p)
	if err != nil {
		return "", autherr.SigningFailure{Cause: err}
	}

	signingInput := codec.Base64URLEncode(headerJSON) + "." + codec.Base64URLEncode(payloadJSON)

	digest := sha256.Sum256([]byte(signingInput))
	der, err := b.material.Signer.Sign(rand.Reader, digest[:], crypto.SHA256)
	if err != nil {
		return "", autherr.SigningFailure{Cause: err}
	}
	raw, err := codec.DERSignatureToRaw(der, 32)
	if err != nil {
		return "", autherr.SigningFailure{Cause: err}
	}

	return signingInput + "." + codec.Base64URLEncode(raw), nil
}
