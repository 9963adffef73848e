// Package authapi is a thin typed JSON client over the three endpoints
// the session engine drives: the attestation challenge, attestation
// registration, and token-mint calls.
package authapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/GateAI-net/gate-ios/autherr"
)

// Client is a JSON POST client over the auth API's three typed calls:
// each request is built with http.NewRequestWithContext from a
// json.Marshal'd body, and each response is decoded as JSON.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
}

// New returns a Client targeting baseURL. A nil httpClient defaults to
// one with a 30s timeout; a nil logger defaults to the global logger.
func New(baseURL string, httpClient *http.Client, logger *zerolog.Logger) *Client {
	hc := httpClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	l := log.Logger
	if logger != nil {
		l = *logger
	}
	return &Client{baseURL: baseURL, httpClient: hc, logger: l}
}

// ChallengeResponse is the `/attest/challenge` success body.
type ChallengeResponse struct {
	Nonce string `json:"nonce"`
	Exp   int64  `json:"exp"`
}

// RegisterRequest is the `/attest/register` request body.
type RegisterRequest struct {
	Platform     string              `json:"platform"`
	App          AppInfo             `json:"app"`
	DeviceKeyJWK interface{}         `json:"device_key_jwk"`
	Attestation  RegisterAttestation `json:"attestation"`
	Nonce        string              `json:"nonce"`
	DPoP         string              `json:"dpop"`
}

type AppInfo struct {
	BundleID string `json:"bundle_id"`
}

type RegisterAttestation struct {
	Type        string `json:"type"`
	KeyID       string `json:"key_id"`
	TeamID      string `json:"team_id"`
	Attestation []byte `json:"attestation"`
}

// RegisterResponse is the `/attest/register` success body.
type RegisterResponse struct {
	Registered bool   `json:"registered"`
	KeyID      string `json:"key_id"`
}

// TokenRequest is the `/token` request body. Exactly one of Attestation
// or DevToken should be set.
type TokenRequest struct {
	Platform     string            `json:"platform"`
	App          AppInfo           `json:"app"`
	DeviceKeyJWK interface{}       `json:"device_key_jwk"`
	Attestation  *TokenAttestation `json:"attestation,omitempty"`
	DevToken     string            `json:"dev_token,omitempty"`
	DPoP         string            `json:"dpop"`
}

type TokenAttestation struct {
	Type      string `json:"type"`
	KeyID     string `json:"key_id"`
	TeamID    string `json:"team_id"`
	Assertion []byte `json:"assertion"`
}

// TokenResponse is the `/token` success body.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	Mode        string `json:"mode,omitempty"`
}

// Challenge calls POST /attest/challenge.
func (c *Client) Challenge(ctx context.Context) (*ChallengeResponse, error) {
	var out ChallengeResponse
	if err := c.post(ctx, "/attest/challenge", map[string]string{"purpose": "token"}, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Register calls POST /attest/register with the given DPoP proof.
func (c *Client) Register(ctx context.Context, req RegisterRequest, dpopProof string) (*RegisterResponse, error) {
	req.DPoP = dpopProof
	var out RegisterResponse
	headers := map[string]string{"DPoP": dpopProof}
	if err := c.post(ctx, "/attest/register", req, headers, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Token calls POST /token with the given DPoP proof.
func (c *Client) Token(ctx context.Context, req TokenRequest, dpopProof string) (*TokenResponse, error) {
	req.DPoP = dpopProof
	var out TokenResponse
	headers := map[string]string{"DPoP": dpopProof}
	if err := c.post(ctx, "/token", req, headers, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) post(ctx context.Context, path string, body interface{}, headers map[string]string, out interface{}) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return autherr.Decoding{Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return autherr.Network{Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	c.logger.Debug().Str("path", path).Msg("auth api request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return autherr.Network{Cause: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return autherr.Network{Cause: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var parsed autherr.ServerErrorBody
		var parsedPtr *autherr.ServerErrorBody
		if json.Unmarshal(respBody, &parsed) == nil && parsed.Code != "" {
			parsedPtr = &parsed
		}
		return autherr.Server{Status: resp.StatusCode, Body: parsedPtr, Headers: resp.Header}
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return autherr.Decoding{Cause: fmt.Errorf("decoding %s response: %w", path, err)}
		}
	}
	return nil
}
