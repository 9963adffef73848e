// Package dispatch generalizes this module's authenticated-request
// plumbing into a standalone sender: correlation-ID injection,
// structured per-attempt logging, and a single nonce-driven retry for
// proxied requests.
package dispatch

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// RequestDispatcher sends a request, retrying exactly once when the
// server responds 401 with a DPoP-Nonce header, substituting the
// caller-supplied retryHeaders in place of the original DPoP header on
// the second attempt.
type RequestDispatcher struct {
	httpClient *http.Client
	logger     zerolog.Logger
}

// New returns a RequestDispatcher. A nil httpClient defaults to one
// with a 30s timeout; a nil logger defaults to the global logger.
func New(httpClient *http.Client, logger *zerolog.Logger) *RequestDispatcher {
	hc := httpClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	l := log.Logger
	if logger != nil {
		l = *logger
	}
	return &RequestDispatcher{httpClient: hc, logger: l}
}

// RetryFunc builds the header set for a retry attempt given the
// DPoP-Nonce value the server returned on the first 401. A dispatcher
// with no RetryFunc simply returns the first response unretried.
type RetryFunc func(nonce string) (map[string]string, error)

// Response is the outcome of Send: the fully read response body, the
// status code, and the response headers. The underlying *http.Response
// is not kept; its body is already closed.
type Response struct {
	Body       []byte
	StatusCode int
	Header     http.Header
}

// Send issues method against url with body and headers, logging each
// attempt with a fresh correlation ID, and retries once through retry
// if the first attempt comes back 401 with a DPoP-Nonce header.
func (d *RequestDispatcher) Send(ctx context.Context, method, url string, body []byte, headers map[string]string, retry RetryFunc) (*Response, error) {
	resp, err := d.attempt(ctx, method, url, body, headers, 0)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized || retry == nil {
		return resp, nil
	}
	nonce := resp.Header.Get("DPoP-Nonce")
	if nonce == "" {
		return resp, nil
	}

	retryHeaders, err := retry(nonce)
	if err != nil {
		return nil, err
	}
	merged := make(map[string]string, len(headers)+len(retryHeaders))
	for k, v := range headers {
		merged[k] = v
	}
	for k, v := range retryHeaders {
		merged[k] = v
	}
	return d.attempt(ctx, method, url, body, merged, 1)
}

func (d *RequestDispatcher) attempt(ctx context.Context, method, url string, body []byte, headers map[string]string, attempt int) (*Response, error) {
	correlationID := uuid.NewString()
	logger := d.logger.With().
		Str("method", method).
		Str("url", url).
		Str("correlation_id", correlationID).
		Int("attempt", attempt).
		Logger()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Correlation-ID", correlationID)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := d.httpClient.Do(req)
	duration := time.Since(start)
	if err != nil {
		logger.Error().Err(err).Dur("duration", duration).Msg("request failed")
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	logger.Debug().
		Int("status", resp.StatusCode).
		Dur("duration", duration).
		Msg("request completed")

	return &Response{Body: respBody, StatusCode: resp.StatusCode, Header: resp.Header}, nil
}
