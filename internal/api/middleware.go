/**
 * @description
 * This file contains custom middleware for the HTTP router. Inbound requests
 * are authenticated with an HMAC over the timestamp and body, using the same
 * shared secret that signs outbound webhooks.
 *
 * @dependencies
 * - bytes, io, net/http, strconv, time: Standard Go libraries.
 * - internal/domain: The HMAC signer.
 */

package api

import (
	"bytes"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/transfa/signer-service/internal/domain"
)

// maxSignatureSkew bounds how stale a signed request may be.
const maxSignatureSkew = 5 * time.Minute

// HMACAuthMiddleware validates the x-timestamp and x-signature headers
// against the shared secret. When disabled it passes everything through,
// which is only meant for local development.
func HMACAuthMiddleware(signer *domain.Signer, enabled bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !enabled {
				next.ServeHTTP(w, r)
				return
			}

			timestamp := r.Header.Get("x-timestamp")
			signature := r.Header.Get("x-signature")
			if timestamp == "" || signature == "" {
				http.Error(w, "signature headers required", http.StatusUnauthorized)
				return
			}

			ts, err := strconv.ParseInt(timestamp, 10, 64)
			if err != nil {
				http.Error(w, "invalid timestamp", http.StatusUnauthorized)
				return
			}
			skew := time.Since(time.UnixMilli(ts))
			if skew < -maxSignatureSkew || skew > maxSignatureSkew {
				http.Error(w, "request expired", http.StatusUnauthorized)
				return
			}

			body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
			if err != nil {
				http.Error(w, "unable to read request body", http.StatusBadRequest)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			if !signer.Verify(timestamp, body, signature) {
				http.Error(w, "invalid signature", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
