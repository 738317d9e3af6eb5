package api

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/transfa/signer-service/internal/domain"
)

func signedRequest(t *testing.T, signer *domain.Signer, body []byte, at time.Time) *http.Request {
	t.Helper()
	timestamp := strconv.FormatInt(at.UnixMilli(), 10)
	req := httptest.NewRequest(http.MethodPost, "/transactions/TRC20/TRX/custody", bytes.NewReader(body))
	req.Header.Set("x-timestamp", timestamp)
	req.Header.Set("x-signature", signer.SignWithTimestamp(timestamp, body))
	return req
}

func passthrough(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		w.WriteHeader(http.StatusOK)
	})
}

func TestHMACAuthMiddleware_AcceptsSignedRequest(t *testing.T) {
	signer := domain.NewSigner("test-secret")
	var called bool
	handler := HMACAuthMiddleware(signer, true)(passthrough(&called))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, signedRequest(t, signer, []byte(`{"id":"transfer-1"}`), time.Now()))

	if rec.Code != http.StatusOK || !called {
		t.Fatalf("expected a signed request to pass, got status %d", rec.Code)
	}
}

func TestHMACAuthMiddleware_RejectsBadSignature(t *testing.T) {
	signer := domain.NewSigner("test-secret")
	var called bool
	handler := HMACAuthMiddleware(signer, true)(passthrough(&called))

	req := signedRequest(t, domain.NewSigner("wrong-secret"), []byte(`{"id":"transfer-1"}`), time.Now())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized || called {
		t.Fatalf("expected a 401 for a foreign signature, got %d", rec.Code)
	}
}

func TestHMACAuthMiddleware_RejectsMissingHeaders(t *testing.T) {
	signer := domain.NewSigner("test-secret")
	var called bool
	handler := HMACAuthMiddleware(signer, true)(passthrough(&called))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/transactions/TRC20/TRX/custody", nil))

	if rec.Code != http.StatusUnauthorized || called {
		t.Fatalf("expected a 401 without signature headers, got %d", rec.Code)
	}
}

func TestHMACAuthMiddleware_RejectsStaleTimestamp(t *testing.T) {
	signer := domain.NewSigner("test-secret")
	var called bool
	handler := HMACAuthMiddleware(signer, true)(passthrough(&called))

	req := signedRequest(t, signer, []byte(`{"id":"transfer-1"}`), time.Now().Add(-10*time.Minute))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized || called {
		t.Fatalf("expected a 401 for a stale timestamp, got %d", rec.Code)
	}
}

func TestHMACAuthMiddleware_DisabledPassesThrough(t *testing.T) {
	signer := domain.NewSigner("test-secret")
	var called bool
	handler := HMACAuthMiddleware(signer, false)(passthrough(&called))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/transactions/TRC20/TRX/custody", nil))

	if rec.Code != http.StatusOK || !called {
		t.Fatalf("expected passthrough when security is disabled, got %d", rec.Code)
	}
}
