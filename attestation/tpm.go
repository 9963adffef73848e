package attestation

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"

	"github.com/google/go-attestation/attest"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/zalando/go-keyring"

	"github.com/GateAI-net/gate-ios/autherr"
	"github.com/GateAI-net/gate-ios/codec"
)

const (
	tpmKeyringService = "net.gateai.gate-ios.attestation.tpm"
	akSuffix          = ".ak"
	appKeySuffix      = ".appkey"
	attestedSuffix    = ".attested"
)

// tpmBlob mirrors the certification-parameter vocabulary a verifier
// decodes with tpm2.DecodeAttestationData / tpm2.DecodePublic: an
// attestation key's certification of an application key. This module
// only produces this blob; it contains no code that verifies it.
type tpmBlob struct {
	Public            []byte `json:"pub_area"`
	CreateAttestation []byte `json:"cert_info"`
	CreateSignature   []byte `json:"sig"`
}

// TPMProvider is a real AttestationProvider backed by a platform TPM,
// used on Android/desktop targets that expose one instead of a Secure
// Enclave. It mirrors App Attest's two-key shape: a long-lived
// attestation key (AK) certifies a per-device application key; the
// application key signs the per-mint assertions.
type TPMProvider struct {
	account string
	logger  zerolog.Logger
}

// NewTPMProvider returns a Provider scoped to bundleIdentifier.
func NewTPMProvider(bundleIdentifier string, logger *zerolog.Logger) *TPMProvider {
	l := log.Logger
	if logger != nil {
		l = *logger
	}
	return &TPMProvider{account: bundleIdentifier, logger: l}
}

func (p *TPMProvider) EnsureKeyID(ctx context.Context) (string, error) {
	if existing, err := keyring.Get(tpmKeyringService, p.account+akSuffix); err == nil {
		return akKeyID(existing), nil
	} else if err != keyring.ErrNotFound {
		return "", autherr.AttestationFailed{Reason: "reading stored AK", Cause: err}
	}

	tpm, err := attest.OpenTPM(&attest.OpenConfig{})
	if err != nil {
		return "", autherr.AttestationFailed{Reason: "opening TPM", Cause: err}
	}
	defer tpm.Close()

	ak, err := tpm.NewAK(&attest.AKConfig{})
	if err != nil {
		return "", autherr.AttestationFailed{Reason: "creating attestation key", Cause: err}
	}
	defer ak.Close(tpm)

	encoded, err := ak.Marshal()
	if err != nil {
		return "", autherr.AttestationFailed{Reason: "marshaling attestation key", Cause: err}
	}
	if err := keyring.Set(tpmKeyringService, p.account+akSuffix, codec.Base64URLEncode(encoded)); err != nil {
		return "", autherr.AttestationFailed{Reason: "persisting attestation key", Cause: err}
	}
	p.logger.Debug().Str("account", p.account).Msg("generated new TPM attestation key")
	return akKeyID(codec.Base64URLEncode(encoded)), nil
}

func (p *TPMProvider) Attest(ctx context.Context, keyID string, clientDataHash [32]byte) ([]byte, error) {
	tpm, ak, err := p.openTPMAndAK()
	if err != nil {
		return nil, err
	}
	defer tpm.Close()
	defer ak.Close(tpm)

	// The application key's unique per-device challenge binds it to
	// this client-data hash the same way a WebAuthn key-auth digest
	// binds a created credential to its challenge.
	appKey, err := tpm.NewKey(ak, &attest.KeyConfig{
		Algorithm:      attest.ECDSA,
		Size:           256,
		QualifyingData: clientDataHash[:],
	})
	if err != nil {
		return nil, autherr.AttestationFailed{Reason: "creating application key", Cause: err}
	}
	defer appKey.Close(tpm)

	encoded, err := appKey.Marshal()
	if err != nil {
		return nil, autherr.AttestationFailed{Reason: "marshaling application key", Cause: err}
	}
	if err := keyring.Set(tpmKeyringService, p.account+appKeySuffix, codec.Base64URLEncode(encoded)); err != nil {
		return nil, autherr.AttestationFailed{Reason: "persisting application key", Cause: err}
	}

	params := appKey.CertificationParameters()
	blob := tpmBlob{
		Public:            params.Public,
		CreateAttestation: params.CreateAttestation,
		CreateSignature:   params.CreateSignature,
	}
	out, err := json.Marshal(blob)
	if err != nil {
		return nil, autherr.AttestationFailed{Reason: "encoding attestation blob", Cause: err}
	}
	return out, nil
}

func (p *TPMProvider) MarkAttested(ctx context.Context, keyID string) error {
	if err := keyring.Set(tpmKeyringService, p.account+attestedSuffix, "true"); err != nil {
		return autherr.AttestationFailed{Reason: "recording attested state", Cause: err}
	}
	return nil
}

func (p *TPMProvider) GenerateAssertion(ctx context.Context, keyID string, clientDataHash [32]byte) ([]byte, error) {
	if _, err := keyring.Get(tpmKeyringService, p.account+attestedSuffix); err == keyring.ErrNotFound {
		return nil, NotAttestedError{KeyID: keyID}
	} else if err != nil {
		return nil, autherr.AttestationFailed{Reason: "reading attested state", Cause: err}
	}

	encoded, err := keyring.Get(tpmKeyringService, p.account+appKeySuffix)
	if err != nil {
		if err == keyring.ErrNotFound {
			return nil, InvalidKeyError{KeyID: keyID, Cause: err}
		}
		return nil, autherr.AttestationFailed{Reason: "reading application key", Cause: err}
	}

	tpm, err := attest.OpenTPM(&attest.OpenConfig{})
	if err != nil {
		return nil, autherr.AttestationFailed{Reason: "opening TPM", Cause: err}
	}
	defer tpm.Close()

	raw, err := codec.Base64URLDecode(encoded)
	if err != nil {
		return nil, InvalidKeyError{KeyID: keyID, Cause: err}
	}
	appKey, err := tpm.LoadKey(raw)
	if err != nil {
		return nil, InvalidKeyError{KeyID: keyID, Cause: err}
	}
	defer appKey.Close(tpm)

	privateKey, err := appKey.Private(appKey.Public())
	if err != nil {
		return nil, InvalidKeyError{KeyID: keyID, Cause: err}
	}
	signer, ok := privateKey.(crypto.Signer)
	if !ok {
		return nil, autherr.AttestationFailed{Reason: "application key does not support signing"}
	}

	der, err := signer.Sign(rand.Reader, clientDataHash[:], crypto.SHA256)
	if err != nil {
		return nil, autherr.AttestationFailed{Reason: "signing assertion", Cause: err}
	}
	raw64, err := codec.DERSignatureToRaw(der, 32)
	if err != nil {
		return nil, autherr.AttestationFailed{Reason: "converting assertion signature", Cause: err}
	}
	return raw64, nil
}

func (p *TPMProvider) Clear(ctx context.Context) error {
	for _, suffix := range []string{akSuffix, appKeySuffix, attestedSuffix} {
		if err := keyring.Delete(tpmKeyringService, p.account+suffix); err != nil && err != keyring.ErrNotFound {
			return autherr.AttestationFailed{Reason: "clearing TPM attestation state", Cause: err}
		}
	}
	return nil
}

func (p *TPMProvider) openTPMAndAK() (*attest.TPM, *attest.AK, error) {
	tpm, err := attest.OpenTPM(&attest.OpenConfig{})
	if err != nil {
		return nil, nil, autherr.AttestationFailed{Reason: "opening TPM", Cause: err}
	}
	encoded, err := keyring.Get(tpmKeyringService, p.account+akSuffix)
	if err != nil {
		tpm.Close()
		if err == keyring.ErrNotFound {
			return nil, nil, InvalidKeyError{Cause: err}
		}
		return nil, nil, autherr.AttestationFailed{Reason: "reading attestation key", Cause: err}
	}
	raw, err := codec.Base64URLDecode(encoded)
	if err != nil {
		tpm.Close()
		return nil, nil, InvalidKeyError{Cause: err}
	}
	ak, err := tpm.LoadAK(raw)
	if err != nil {
		tpm.Close()
		return nil, nil, InvalidKeyError{Cause: err}
	}
	return tpm, ak, nil
}

func akKeyID(encoded string) string {
	sum := sha256.Sum256([]byte(encoded))
	return codec.Base64URLEncode(sum[:])
}
