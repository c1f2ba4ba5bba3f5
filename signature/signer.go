// Package signature provides HMAC-SHA256 webhook payload signing and verification.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Scheme is the signature scheme identifier prepended to every signature.
const Scheme = "sha256"

// Signer computes HMAC-SHA256 signatures for webhook payloads.
type Signer struct{}

// NewSigner returns a new Signer.
func NewSigner() *Signer {
	return &Signer{}
}

// Sign generates the HMAC-SHA256 signature for the given payload.
// Returns a signature in the format "sha256=<hex digest>", suitable for
// the X-Webhook-Signature header.
func (s *Signer) Sign(payload []byte, secret string) string {
	return Sign(payload, secret)
}

// Sign generates the HMAC-SHA256 signature for the given payload.
// Returns a signature in the format "sha256=<hex digest>", suitable for
// the X-Webhook-Signature header.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return Scheme + "=" + hex.EncodeToString(mac.Sum(nil))
}
