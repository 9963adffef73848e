package session

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/GateAI-net/gate-ios/attestation"
	"github.com/GateAI-net/gate-ios/authapi"
	"github.com/GateAI-net/gate-ios/autherr"
	"github.com/GateAI-net/gate-ios/clienthash"
	"github.com/GateAI-net/gate-ios/codec"
	"github.com/GateAI-net/gate-ios/devicekey"
	"github.com/GateAI-net/gate-ios/dpop"
	"github.com/GateAI-net/gate-ios/gateiosconfig"
)

// maxAttestationAttempts bounds the attempt loop: one restart is
// allowed after an invalid-key signal or a server-reported
// registration-required response, per the attestation-key state
// machine's recovery paths.
const maxAttestationAttempts = 2

type tokenResult struct {
	value     string
	expiresAt time.Time
}

// mint runs the production or development mint flow and returns the
// resulting access token, or the first non-recoverable error.
func (s *AuthSession) mint(ctx context.Context) (tokenResult, error) {
	material, builder, err := s.ensureMaterial(ctx)
	if err != nil {
		return tokenResult{}, err
	}

	// A development token configured outside the simulator is rejected
	// outright rather than silently ignored and falling through to the
	// production path: shipping a stray dev token in host config is a
	// configuration mistake worth surfacing, not masking.
	if s.config.DevelopmentToken != "" && s.config.Environment != gateiosconfig.EnvironmentSimulator {
		return tokenResult{}, autherr.Configuration{Reason: "development token supplied outside the simulator environment"}
	}
	if s.config.AllowsDevelopmentToken() {
		return s.mintDevelopment(ctx, material, builder)
	}
	return s.mintProduction(ctx, material, builder)
}

func (s *AuthSession) mintDevelopment(ctx context.Context, material *devicekey.Material, builder *dpop.Builder) (tokenResult, error) {
	req := authapi.TokenRequest{
		Platform:     "ios",
		App:          authapi.AppInfo{BundleID: s.config.BundleIdentifier},
		DeviceKeyJWK: material.PublicJWK,
		DevToken:     s.config.DevelopmentToken,
	}
	return s.exchangeToken(ctx, req, builder)
}

func (s *AuthSession) mintProduction(ctx context.Context, material *devicekey.Material, builder *dpop.Builder) (tokenResult, error) {
	challenge, err := s.api.Challenge(ctx)
	if err != nil {
		return tokenResult{}, err
	}

	nonceBytes, err := decodeNonce(challenge.Nonce)
	if err != nil {
		return tokenResult{}, err
	}
	cdh := clienthash.ClientDataHash(nonceBytes, material.CanonicalJWK())

	keyID, err := s.provider.EnsureKeyID(ctx)
	if err != nil {
		return tokenResult{}, mapAttestationErr(err)
	}

	for attempt := 1; attempt <= maxAttestationAttempts; attempt++ {
		assertion, err := s.provider.GenerateAssertion(ctx, keyID, cdh)
		if err != nil {
			var notAttested attestation.NotAttestedError
			var invalidKey attestation.InvalidKeyError

			switch {
			case errors.As(err, &notAttested):
				if regErr := s.register(ctx, material, builder, keyID, cdh, challenge.Nonce); regErr != nil {
					return tokenResult{}, regErr
				}
				assertion, err = s.provider.GenerateAssertion(ctx, keyID, cdh)
				if err != nil {
					return tokenResult{}, autherr.AttestationFailed{Reason: "assertion still failing after registration", Cause: err}
				}

			case errors.As(err, &invalidKey) && attempt == 1:
				if clearErr := s.provider.Clear(ctx); clearErr != nil {
					return tokenResult{}, autherr.AttestationFailed{Reason: "clearing invalid attestation key", Cause: clearErr}
				}
				keyID, err = s.provider.EnsureKeyID(ctx)
				if err != nil {
					return tokenResult{}, mapAttestationErr(err)
				}
				continue

			default:
				return tokenResult{}, autherr.AttestationFailed{Reason: "generating assertion", Cause: err}
			}
		}

		req := authapi.TokenRequest{
			Platform:     "ios",
			App:          authapi.AppInfo{BundleID: s.config.BundleIdentifier},
			DeviceKeyJWK: material.PublicJWK,
			Attestation: &authapi.TokenAttestation{
				Type:   "app_attest",
				KeyID:  keyID,
				TeamID: s.config.TeamIdentifier,
				Assertion: assertion,
			},
		}

		result, err := s.exchangeToken(ctx, req, builder)
		if err == nil {
			return result, nil
		}

		var serverErr autherr.Server
		if errors.As(err, &serverErr) && serverErr.Status == http.StatusUnauthorized &&
			serverErr.Code() == autherr.CodeAttestationFailed && attempt == 1 &&
			registrationRequired(serverErr.Body) {
			if clearErr := s.provider.Clear(ctx); clearErr != nil {
				return tokenResult{}, autherr.AttestationFailed{Reason: "clearing after registration-required response", Cause: clearErr}
			}
			keyID, err = s.provider.EnsureKeyID(ctx)
			if err != nil {
				return tokenResult{}, mapAttestationErr(err)
			}
			continue
		}

		return tokenResult{}, err
	}

	return tokenResult{}, autherr.AttestationFailed{Reason: "exhausted attestation attempt loop"}
}

// register runs the registration sub-flow: one-time attestation,
// /attest/register, and marking the key attested on success.
func (s *AuthSession) register(ctx context.Context, material *devicekey.Material, builder *dpop.Builder, keyID string, cdh [32]byte, rawNonce string) error {
	blob, err := s.provider.Attest(ctx, keyID, cdh)
	if err != nil {
		return autherr.AttestationFailed{Reason: "producing attestation blob", Cause: err}
	}

	proof, err := builder.Proof(http.MethodPost, s.config.BaseURL+"/attest/register", "")
	if err != nil {
		return err
	}

	_, err = s.api.Register(ctx, authapi.RegisterRequest{
		Platform:     "ios",
		App:          authapi.AppInfo{BundleID: s.config.BundleIdentifier},
		DeviceKeyJWK: material.PublicJWK,
		Attestation: authapi.RegisterAttestation{
			Type:        "app_attest",
			KeyID:       keyID,
			TeamID:      s.config.TeamIdentifier,
			Attestation: blob,
		},
		Nonce: rawNonce,
	}, proof)
	if err != nil {
		return autherr.AttestationFailed{Reason: "registration rejected by server", Cause: err}
	}

	if err := s.provider.MarkAttested(ctx, keyID); err != nil {
		return autherr.AttestationFailed{Reason: "marking attestation key attested", Cause: err}
	}
	return nil
}

// exchangeToken calls /token once, and once more with the server's
// nonce if the first call returns 401 with a DPoP-Nonce header.
func (s *AuthSession) exchangeToken(ctx context.Context, req authapi.TokenRequest, builder *dpop.Builder) (tokenResult, error) {
	proof, err := builder.Proof(http.MethodPost, s.config.BaseURL+"/token", "")
	if err != nil {
		return tokenResult{}, err
	}

	resp, err := s.api.Token(ctx, req, proof)
	if err == nil {
		return tokenResult{value: resp.AccessToken, expiresAt: time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second)}, nil
	}

	var serverErr autherr.Server
	if !errors.As(err, &serverErr) {
		return tokenResult{}, err
	}
	if serverErr.Status != http.StatusUnauthorized || serverErr.Nonce() == "" {
		return tokenResult{}, serverErr
	}

	retryProof, err := builder.Proof(http.MethodPost, s.config.BaseURL+"/token", serverErr.Nonce())
	if err != nil {
		return tokenResult{}, err
	}
	resp, err = s.api.Token(ctx, req, retryProof)
	if err != nil {
		return tokenResult{}, err
	}
	return tokenResult{value: resp.AccessToken, expiresAt: time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second)}, nil
}

// decodeNonce tries base64url, then standard base64, then falls back
// to the raw UTF-8 bytes of nonce, which always succeeds.
func decodeNonce(nonce string) ([]byte, error) {
	if nonce == "" {
		return nil, autherr.Configuration{Reason: "challenge nonce is empty"}
	}
	if b, err := codec.Base64URLDecode(nonce); err == nil {
		return b, nil
	}
	if b, err := base64.StdEncoding.DecodeString(nonce); err == nil {
		return b, nil
	}
	return []byte(nonce), nil
}

func registrationRequired(body *autherr.ServerErrorBody) bool {
	if body == nil {
		return false
	}
	return strings.Contains(strings.ToLower(body.Description), "registration required")
}

func mapAttestationErr(err error) error {
	if err == nil {
		return nil
	}
	var unavailable autherr.AttestationUnavailable
	if errors.As(err, &unavailable) {
		return err
	}
	return autherr.AttestationFailed{Reason: "attestation provider error", Cause: err}
}
