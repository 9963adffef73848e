package dpop

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/GateAI-net/gate-ios/autherr"
	"github.com/GateAI-net/gate-ios/codec"
)

// Claims is the decoded DPoP payload a successful Verify returns.
type Claims struct {
	Method string
	URL    string
	IssuedAt time.Time
	JTI    string
	Nonce  string
}

// Verify checks that proof is a well-formed DPoP JWT signed by the key
// embedded in its own header, bound to method/url, issued within
// maxAge of now. It is a self-check utility for hosts and tests, not
// part of the mint flow itself, which never needs to verify its own
// proofs.
func Verify(proof, method, url string, maxAge time.Duration) (*Claims, error) {
	unverified, _, err := jwt.NewParser().ParseUnverified(proof, jwt.MapClaims{})
	if err != nil {
		return nil, autherr.InvalidFormat{Reason: fmt.Sprintf("parsing DPoP proof: %s", err)}
	}

	jwkHeader, ok := unverified.Header["jwk"].(map[string]interface{})
	if !ok {
		return nil, autherr.InvalidFormat{Reason: "DPoP header missing embedded jwk"}
	}
	pub, err := publicKeyFromJWKHeader(jwkHeader)
	if err != nil {
		return nil, err
	}

	claims := jwt.MapClaims{}
	_, err = jwt.ParseWithClaims(proof, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodECDSA); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Method.Alg())
		}
		return pub, nil
	})
	if err != nil {
		return nil, autherr.InvalidFormat{Reason: fmt.Sprintf("verifying DPoP signature: %s", err)}
	}

	htm, _ := claims["htm"].(string)
	htu, _ := claims["htu"].(string)
	iat, _ := claims["iat"].(float64)
	jti, _ := claims["jti"].(string)
	nonce, _ := claims["nonce"].(string)

	if !strings.EqualFold(htm, method) {
		return nil, autherr.InvalidFormat{Reason: fmt.Sprintf("htm %q does not match expected method %q", htm, method)}
	}
	if htu != url {
		return nil, autherr.InvalidFormat{Reason: fmt.Sprintf("htu %q does not match expected url %q", htu, url)}
	}
	issuedAt := time.Unix(int64(iat), 0)
	if maxAge > 0 && time.Since(issuedAt) > maxAge {
		return nil, autherr.InvalidFormat{Reason: "DPoP proof iat is stale"}
	}

	return &Claims{Method: htm, URL: htu, IssuedAt: issuedAt, JTI: jti, Nonce: nonce}, nil
}

func publicKeyFromJWKHeader(jwk map[string]interface{}) (*ecdsa.PublicKey, error) {
	crv, _ := jwk["crv"].(string)
	kty, _ := jwk["kty"].(string)
	xStr, _ := jwk["x"].(string)
	yStr, _ := jwk["y"].(string)

	if kty != "EC" || crv != "P-256" {
		return nil, autherr.InvalidFormat{Reason: fmt.Sprintf("unsupported jwk kty/crv %q/%q", kty, crv)}
	}
	xBytes, err := codec.Base64URLDecode(xStr)
	if err != nil {
		return nil, autherr.InvalidFormat{Reason: "malformed jwk x coordinate"}
	}
	yBytes, err := codec.Base64URLDecode(yStr)
	if err != nil {
		return nil, autherr.InvalidFormat{Reason: "malformed jwk y coordinate"}
	}

	return &ecdsa.PublicKey{
		Curve: elliptic.P256(),
		X:     new(big.Int).SetBytes(xBytes),
		Y:     new(big.Int).SetBytes(yBytes),
	}, nil
}
