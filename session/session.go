// Package session implements the authentication session engine: the
// concurrent state machine that manages the device keypair, performs
// one-time attestation and enrollment, exchanges assertions for
// short-lived access tokens, and produces per-request DPoP proofs.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/GateAI-net/gate-ios/attestation"
	"github.com/GateAI-net/gate-ios/authapi"
	"github.com/GateAI-net/gate-ios/devicekey"
	"github.com/GateAI-net/gate-ios/dpop"
	"github.com/GateAI-net/gate-ios/gateiosconfig"
)

// freshnessWindow is the minimum remaining lifetime a cached token must
// have to be reused without triggering a mint.
const freshnessWindow = 60 * time.Second

// AuthorizationContext is the per-request header pair headers(...)
// produces: a bearer token (possibly reused) and a freshly signed DPoP
// proof bound to the exact request it was built for. Never cached.
type AuthorizationContext struct {
	Bearer string
	DPoP   string
}

// AuthSession coordinates challenge → attest/register (once) →
// assertion → token exchange, caches tokens, coalesces concurrent
// mints, and produces (bearer, dpop) pairs. The token cache and the
// cached device key material are guarded by mu, with a read-locked fast
// path and a write-locked slow path; the mint slot is a
// singleflight.Group layered on top so concurrent cache misses attach
// to one in-flight mint instead of racing to start their own, and
// mintMu guards the cancel function of that in-flight mint.
type AuthSession struct {
	config   *gateiosconfig.Config
	keyStore devicekey.KeyStore
	provider attestation.Provider
	api      *authapi.Client
	logger   zerolog.Logger

	mu        sync.RWMutex
	material  *devicekey.Material
	builder   *dpop.Builder
	token     string
	expiresAt time.Time

	mintGroup singleflight.Group

	baseCtx    context.Context
	baseCancel context.CancelFunc

	mintMu     sync.Mutex
	mintCancel context.CancelFunc
}

// New returns an AuthSession wired to the given dependencies. A nil
// logger defaults to the global zerolog logger.
func New(cfg *gateiosconfig.Config, keyStore devicekey.KeyStore, provider attestation.Provider, api *authapi.Client, logger *zerolog.Logger) *AuthSession {
	l := log.Logger
	if logger != nil {
		l = *logger
	}
	baseCtx, baseCancel := context.WithCancel(context.Background())
	return &AuthSession{
		config:     cfg,
		keyStore:   keyStore,
		provider:   provider,
		api:        api,
		logger:     l,
		baseCtx:    baseCtx,
		baseCancel: baseCancel,
	}
}

// Headers ensures a valid token, then builds a DPoP proof for this
// exact (method, url, nonce). Returns {bearer, dpop}.
func (s *AuthSession) Headers(ctx context.Context, method, url, nonce string) (AuthorizationContext, error) {
	token, err := s.ensureToken(ctx)
	if err != nil {
		return AuthorizationContext{}, err
	}
	_, builder, err := s.ensureMaterial(ctx)
	if err != nil {
		return AuthorizationContext{}, err
	}
	proof, err := builder.Proof(method, url, nonce)
	if err != nil {
		return AuthorizationContext{}, err
	}
	return AuthorizationContext{Bearer: token, DPoP: proof}, nil
}

// CurrentToken ensures a valid token and returns the bearer value.
func (s *AuthSession) CurrentToken(ctx context.Context) (string, error) {
	return s.ensureToken(ctx)
}

// Reset cancels any in-flight mint and discards the token cache. Does
// NOT destroy keys.
func (s *AuthSession) Reset() {
	s.mintMu.Lock()
	if s.mintCancel != nil {
		s.mintCancel()
	}
	s.mintMu.Unlock()

	s.mu.Lock()
	s.token = ""
	s.expiresAt = time.Time{}
	s.mu.Unlock()
}

// Close cancels any in-flight mint and releases the session's
// resources. The device key store's underlying secret persists; only
// this process's in-memory handle is released.
func (s *AuthSession) Close() {
	s.Reset()
	s.baseCancel()

	s.mu.Lock()
	s.material = nil
	s.builder = nil
	s.mu.Unlock()
}

func (s *AuthSession) ensureToken(ctx context.Context) (string, error) {
	if token, ok := s.cachedToken(); ok {
		return token, nil
	}

	v, err, _ := s.mintGroup.Do("mint", func() (interface{}, error) {
		if token, ok := s.cachedToken(); ok {
			return token, nil
		}

		mintCtx, cancel := context.WithCancel(s.baseCtx)
		s.mintMu.Lock()
		s.mintCancel = cancel
		s.mintMu.Unlock()
		defer func() {
			cancel()
			s.mintMu.Lock()
			s.mintCancel = nil
			s.mintMu.Unlock()
		}()

		result, err := s.mint(mintCtx)
		if err != nil {
			return "", err
		}

		s.mu.Lock()
		s.token = result.value
		s.expiresAt = result.expiresAt
		s.mu.Unlock()

		s.logger.Debug().Time("expires_at", result.expiresAt).Msg("minted access token")
		return result.value, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (s *AuthSession) cachedToken() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" {
		return "", false
	}
	if time.Until(s.expiresAt) <= freshnessWindow {
		return "", false
	}
	return s.token, true
}

func (s *AuthSession) ensureMaterial(ctx context.Context) (*devicekey.Material, *dpop.Builder, error) {
	s.mu.RLock()
	if s.material != nil {
		m, b := s.material, s.builder
		s.mu.RUnlock()
		return m, b, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.material != nil {
		return s.material, s.builder, nil
	}

	material, err := s.keyStore.LoadOrCreate(ctx)
	if err != nil {
		return nil, nil, err
	}
	builder := dpop.NewBuilder(material)
	s.material = material
	s.builder = builder
	return material, builder, nil
}
