/**
 * @description
 * Shared-secret HMAC signing for the service boundary. Outbound webhooks are
 * signed over the exact serialized body; inbound requests are verified over
 * timestamp+body. Both sides hex-encode the digest, matching the upstream
 * contract.
 */
package domain

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Signer produces and verifies HMAC-SHA256 signatures with a shared secret.
type Signer struct {
	secret []byte
}

// NewSigner returns a Signer for the given shared secret.
func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// Sign returns the hex-encoded HMAC-SHA256 of body.
func (s *Signer) Sign(body []byte) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// SignWithTimestamp signs timestamp||body, the scheme inbound requests use.
func (s *Signer) SignWithTimestamp(timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(timestamp))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a hex signature over timestamp||body in constant time.
func (s *Signer) Verify(timestamp string, body []byte, signature string) bool {
	expected := s.SignWithTimestamp(timestamp, body)
	return hmac.Equal([]byte(expected), []byte(signature))
}
