package dispatch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSendSuccessNoRetry(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if got := r.Header.Get("X-Correlation-ID"); got == "" {
			t.Fatal("expected a correlation id header")
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	d := New(srv.Client(), nil)
	resp, err := d.Send(context.Background(), http.MethodGet, srv.URL, nil, nil, nil)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if string(resp.Body) != "ok" {
		t.Fatalf("expected body %q, got %q", "ok", resp.Body)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestSendRetriesOnceOnNonceChallenge(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("DPoP-Nonce", "N1")
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if got := r.Header.Get("X-DPoP"); got != "retried-with-N1" {
			t.Fatalf("expected retry header built from nonce, got %q", got)
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	d := New(srv.Client(), nil)
	retry := func(nonce string) (map[string]string, error) {
		return map[string]string{"X-DPoP": "retried-with-" + nonce}, nil
	}
	resp, err := d.Send(context.Background(), http.MethodGet, srv.URL, nil, nil, retry)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if string(resp.Body) != "ok" {
		t.Fatalf("expected eventual success, got %q", resp.Body)
	}
	if calls != 2 {
		t.Fatalf("expected exactly 2 attempts, got %d", calls)
	}
}

func TestSendDoesNotRetryWithoutNonceHeader(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	d := New(srv.Client(), nil)
	retry := func(nonce string) (map[string]string, error) {
		t.Fatal("retry should not be invoked without a DPoP-Nonce header")
		return nil, nil
	}
	resp, err := d.Send(context.Background(), http.MethodGet, srv.URL, nil, nil, retry)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 returned unretried, got %d", resp.StatusCode)
	}
	if calls != 1 {
		t.Fatalf("expected exactly 1 attempt, got %d", calls)
	}
}
