package httpx

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"log"
	"net/http"
)

// HMACHeader carries the hex HMAC-SHA256 of the request body
const HMACHeader = "X-EdgeProbe-HMAC"

// HMACAuth verifies signed /classify payloads
type HMACAuth struct {
	secret      []byte
	requireHMAC bool
}

func NewHMACAuth(secret string, requireHMAC bool) *HMACAuth {
	return &HMACAuth{secret: []byte(secret), requireHMAC: requireHMAC}
}

// Sign returns the signature a client must send for payload
func (h *HMACAuth) Sign(payload []byte) string {
	if len(h.secret) == 0 {
		return ""
	}
	mac := hmac.New(sha256.New, h.secret)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyHMAC reports whether r may proceed. When signatures are optional an
// absent header passes, but a present one must still be valid.
func (h *HMACAuth) VerifyHMAC(r *http.Request, payload []byte) bool {
	provided := r.Header.Get(HMACHeader)
	if provided == "" {
		if h.requireHMAC {
			log.Printf("hmac: missing %s header from %s", HMACHeader, r.RemoteAddr)
			return false
		}
		return true
	}
	if len(h.secret) == 0 {
		log.Printf("hmac: signature sent but no secret configured")
		return !h.requireHMAC
	}

	if !hmac.Equal([]byte(provided), []byte(h.Sign(payload))) {
		log.Printf("hmac: signature mismatch from %s", r.RemoteAddr)
		return false
	}
	return true
}
