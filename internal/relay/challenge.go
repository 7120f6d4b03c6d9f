package relay

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

const fingerprintBytes = 10

// SignChallenge computes HMAC-SHA256(secret, nonce), hex-encoded. A caller
// that knows the expected secret can verify it is talking to a relay holding
// that secret without the secret ever leaving the server.
func SignChallenge(secret, nonce string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(nonce))
	return hex.EncodeToString(mac.Sum(nil))
}

// Fingerprint returns a short, stable, human-comparable derivation of a
// public key: SHA-256 truncated to 10 bytes, hex-encoded.
func Fingerprint(publicKey string) string {
	sum := sha256.Sum256([]byte(publicKey))
	return hex.EncodeToString(sum[:fingerprintBytes])
}
