package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Sign computes the hex-encoded HMAC-SHA256 over the canonical form of the
// payload tree. Returns "" when no secret is configured.
func Sign(n *Node, secret string) string {
	if secret == "" {
		return ""
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(Canonicalize(n))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a presented signature against the payload tree. The
// comparison is constant-time and case-insensitive. It fails closed: a
// missing secret or empty presented signature is always false, and no
// failure mode escapes as a panic or error.
func Verify(n *Node, secret, presented string) bool {
	presented = strings.TrimSpace(presented)
	if secret == "" || presented == "" {
		return false
	}
	computed := Sign(n, secret)
	if computed == "" {
		return false
	}
	return hmac.Equal([]byte(strings.ToLower(presented)), []byte(computed))
}
