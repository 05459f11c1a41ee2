package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// signaturePrefix names the algorithm in X-Signature, e.g. "sha256=ab12...".
const signaturePrefix = "sha256="

func mac(secret string, payload []byte) []byte {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return h.Sum(nil)
}

// Sign returns the X-Signature value for a run notification payload.
func Sign(secret string, payload []byte) string {
	return signaturePrefix + hex.EncodeToString(mac(secret, payload))
}

// Verify reports whether header is the signature of payload under secret.
// Receivers call it on the raw request body.
func Verify(secret string, payload []byte, header string) bool {
	got, err := hex.DecodeString(strings.TrimPrefix(header, signaturePrefix))
	if err != nil || !strings.HasPrefix(header, signaturePrefix) {
		return false
	}
	return hmac.Equal(mac(secret, payload), got)
}
