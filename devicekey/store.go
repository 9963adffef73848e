package devicekey

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/zalando/go-keyring"
	"go.step.sm/crypto/keyutil"

	"github.com/GateAI-net/gate-ios/autherr"
	"github.com/GateAI-net/gate-ios/codec"
)

const keyringService = "net.gateai.gate-ios.devicekey"

// KeyStore loads the device's persistent signing key, creating one on
// first use. Implementations must be idempotent: repeated calls for the
// same identity return equivalent Material backed by the same
// underlying key.
type KeyStore interface {
	LoadOrCreate(ctx context.Context) (*Material, error)
}

// keyringStore is the workstation/CI-portable stand-in for a real iOS
// Secure Enclave + Keychain bridge: it persists the key material via the
// OS keychain / Secret Service / Credential Manager through
// github.com/zalando/go-keyring, under an account derived from the
// bundle identifier. A real platform bridge would satisfy the same
// KeyStore contract backed by hardware instead.
type keyringStore struct {
	account string
	logger  zerolog.Logger
}

// NewKeyringStore returns a KeyStore scoped to bundleIdentifier. A nil
// logger defaults to the global zerolog logger.
func NewKeyringStore(bundleIdentifier string, logger *zerolog.Logger) KeyStore {
	l := log.Logger
	if logger != nil {
		l = *logger
	}
	return &keyringStore{account: bundleIdentifier, logger: l}
}

func (s *keyringStore) LoadOrCreate(ctx context.Context) (*Material, error) {
	der, err := keyring.Get(keyringService, s.account)
	if err == nil {
		signer, parseErr := x509.ParsePKCS8PrivateKey(mustDecode(der))
		if parseErr != nil {
			return nil, autherr.SecureEnclaveUnavailable{Cause: fmt.Errorf("corrupt stored key: %w", parseErr)}
		}
		ecKey, ok := signer.(*ecdsa.PrivateKey)
		if !ok {
			return nil, autherr.SecureEnclaveUnavailable{Cause: fmt.Errorf("stored key is not ECDSA")}
		}
		if err := keyutil.VerifyPair(ecKey.Public(), ecKey); err != nil {
			return nil, autherr.SecureEnclaveUnavailable{Cause: fmt.Errorf("stored key fails pair verification: %w", err)}
		}
		s.logger.Debug().Str("account", s.account).Msg("device key loaded from keychain")
		return NewMaterial(ecKey)
	}
	if err != keyring.ErrNotFound {
		return nil, autherr.SecureEnclaveUnavailable{Cause: err}
	}

	s.logger.Debug().Str("account", s.account).Msg("no device key found, generating one")
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, autherr.SecureEnclaveUnavailable{Cause: err}
	}
	pkcs8, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, autherr.SecureEnclaveUnavailable{Cause: err}
	}
	if err := keyring.Set(keyringService, s.account, codec.Base64URLEncode(pkcs8)); err != nil {
		return nil, autherr.SecureEnclaveUnavailable{Cause: err}
	}
	s.logger.Debug().Str("account", s.account).Msg("device key generated and stored in keychain")
	return NewMaterial(key)
}

// mustDecode reverses the base64url encoding LoadOrCreate stores PKCS#8
// DER under, since go-keyring only carries strings. A decode failure
// here means the keychain entry was corrupted or written by something
// other than this package, surfaced to the caller as a parse error by
// the caller of mustDecode.
func mustDecode(s string) []byte {
	b, err := codec.Base64URLDecode(s)
	if err != nil {
		return nil
	}
	return b
}
